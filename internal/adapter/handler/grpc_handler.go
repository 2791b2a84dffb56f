package handler

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/core/service"
)

const (
	ServiceName = "wms.v1.ApprovalService"

	metadataUserID    = "x-user-id"
	metadataUserRoles = "x-user-roles"
)

type ApprovalServiceServer interface {
	SubmitInventory(context.Context, *SubmitInventoryRequest) (*InventoryApplicationResponse, error)
	ApproveInventory(context.Context, *DecisionRequest) (*InventoryApplicationResponse, error)
	ExecuteInventory(context.Context, *ExecuteRequest) (*InventoryApplicationResponse, error)
	SubmitProcurement(context.Context, *SubmitProcurementRequest) (*ProcurementApplicationResponse, error)
	ApproveProcurement(context.Context, *DecisionRequest) (*ProcurementApplicationResponse, error)
	GetStock(context.Context, *StockRequest) (*StockSnapshotResponse, error)
}

type GRPCHandler struct {
	inventory   *service.InventoryService
	procurement *service.ProcurementService
	logger      *zap.Logger
}

func NewGRPCHandler(inventory *service.InventoryService, procurement *service.ProcurementService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{inventory: inventory, procurement: procurement, logger: logger}
}

func (h *GRPCHandler) SubmitInventory(ctx context.Context, req *SubmitInventoryRequest) (*InventoryApplicationResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := h.inventory.Submit(ctx, actor, domain.InventoryType(req.Type), req.toService())
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newInventoryResponse(view.Application, &view.Flow), nil
}

func (h *GRPCHandler) ApproveInventory(ctx context.Context, req *DecisionRequest) (*InventoryApplicationResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := h.inventory.Approve(ctx, actor, req.ApplicationID, req.Approved, req.Comment)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newInventoryResponse(view.Application, &view.Flow), nil
}

func (h *GRPCHandler) ExecuteInventory(ctx context.Context, req *ExecuteRequest) (*InventoryApplicationResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := h.inventory.Execute(ctx, actor, req.ApplicationID, req.toService())
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newInventoryResponse(view.Application, &view.Flow), nil
}

func (h *GRPCHandler) SubmitProcurement(ctx context.Context, req *SubmitProcurementRequest) (*ProcurementApplicationResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := h.procurement.Submit(ctx, actor, req.toService())
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newProcurementResponse(view.Application, &view.Flow), nil
}

func (h *GRPCHandler) ApproveProcurement(ctx context.Context, req *DecisionRequest) (*ProcurementApplicationResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := h.procurement.Approve(ctx, actor, req.ApplicationID, req.Approved, req.Comment)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newProcurementResponse(view.Application, &view.Flow), nil
}

func (h *GRPCHandler) GetStock(ctx context.Context, _ *StockRequest) (*StockSnapshotResponse, error) {
	views, err := h.inventory.StockSnapshot(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newStockSnapshot(views), nil
}

func (h *GRPCHandler) toStatus(err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		h.logger.Error("rpc failed", zap.Error(err))
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

func actorFromContext(ctx context.Context) (domain.User, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	user, ok := parseUser(first(md.Get(metadataUserID)), first(md.Get(metadataUserRoles)))
	if !ok {
		return domain.User{}, status.Error(codes.Unauthenticated, "missing "+metadataUserID+" metadata")
	}
	return user, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// RegisterApprovalServiceServer mirrors what protoc-gen-go-grpc would emit
// for the service; messages are the JSON structs in this package.
func RegisterApprovalServiceServer(s grpc.ServiceRegistrar, srv ApprovalServiceServer) {
	s.RegisterService(&ApprovalServiceDesc, srv)
}

var ApprovalServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ApprovalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitInventory", Handler: unaryHandler("SubmitInventory", ApprovalServiceServer.SubmitInventory)},
		{MethodName: "ApproveInventory", Handler: unaryHandler("ApproveInventory", ApprovalServiceServer.ApproveInventory)},
		{MethodName: "ExecuteInventory", Handler: unaryHandler("ExecuteInventory", ApprovalServiceServer.ExecuteInventory)},
		{MethodName: "SubmitProcurement", Handler: unaryHandler("SubmitProcurement", ApprovalServiceServer.SubmitProcurement)},
		{MethodName: "ApproveProcurement", Handler: unaryHandler("ApproveProcurement", ApprovalServiceServer.ApproveProcurement)},
		{MethodName: "GetStock", Handler: unaryHandler("GetStock", ApprovalServiceServer.GetStock)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wms/v1/approval.proto",
}

func unaryHandler[Req, Resp any](method string, call func(ApprovalServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ApprovalServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ApprovalServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ApprovalServiceClient calls the service with the JSON codec.
type ApprovalServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewApprovalServiceClient(cc grpc.ClientConnInterface) *ApprovalServiceClient {
	return &ApprovalServiceClient{cc: cc}
}

func (c *ApprovalServiceClient) SubmitInventory(ctx context.Context, in *SubmitInventoryRequest, opts ...grpc.CallOption) (*InventoryApplicationResponse, error) {
	out := new(InventoryApplicationResponse)
	if err := c.invoke(ctx, "SubmitInventory", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ApprovalServiceClient) ApproveInventory(ctx context.Context, in *DecisionRequest, opts ...grpc.CallOption) (*InventoryApplicationResponse, error) {
	out := new(InventoryApplicationResponse)
	if err := c.invoke(ctx, "ApproveInventory", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ApprovalServiceClient) ExecuteInventory(ctx context.Context, in *ExecuteRequest, opts ...grpc.CallOption) (*InventoryApplicationResponse, error) {
	out := new(InventoryApplicationResponse)
	if err := c.invoke(ctx, "ExecuteInventory", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ApprovalServiceClient) SubmitProcurement(ctx context.Context, in *SubmitProcurementRequest, opts ...grpc.CallOption) (*ProcurementApplicationResponse, error) {
	out := new(ProcurementApplicationResponse)
	if err := c.invoke(ctx, "SubmitProcurement", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ApprovalServiceClient) ApproveProcurement(ctx context.Context, in *DecisionRequest, opts ...grpc.CallOption) (*ProcurementApplicationResponse, error) {
	out := new(ProcurementApplicationResponse)
	if err := c.invoke(ctx, "ApproveProcurement", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ApprovalServiceClient) GetStock(ctx context.Context, in *StockRequest, opts ...grpc.CallOption) (*StockSnapshotResponse, error) {
	out := new(StockSnapshotResponse)
	if err := c.invoke(ctx, "GetStock", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ApprovalServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

// WithUser attaches the acting user to an outgoing call.
func WithUser(ctx context.Context, user domain.User) context.Context {
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}
	return metadata.AppendToOutgoingContext(ctx,
		metadataUserID, user.ID,
		metadataUserRoles, strings.Join(roles, ","),
	)
}
