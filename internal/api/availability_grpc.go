package api

import (
	"context"
	"errors"
	"strings"

	"glowbook/internal/models"
	"glowbook/internal/schedule"
	"glowbook/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	availabilityServiceName  = "glowbook.availability.v1.AvailabilityService"
	availabilityMethodPrefix = "/" + availabilityServiceName + "/"
)

type AvailabilityRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
}

type AvailabilityResponse struct {
	ProviderID string            `json:"provider_id"`
	Date       string            `json:"date"`
	Intervals  []models.Interval `json:"intervals"`
}

type FreeSlotsResponse struct {
	ProviderID string        `json:"provider_id"`
	Date       string        `json:"date"`
	Slots      []models.Slot `json:"slots"`
}

type BookableDatesRequest struct {
	ProviderID string `json:"provider_id"`
}

type BookableDatesResponse struct {
	ProviderID string   `json:"provider_id"`
	Dates      []string `json:"dates"`
}

// AvailabilityServer is the read-only schedule API offered to partners.
type AvailabilityServer interface {
	GetAvailability(ctx context.Context, req *AvailabilityRequest) (*AvailabilityResponse, error)
	GetFreeSlots(ctx context.Context, req *AvailabilityRequest) (*FreeSlotsResponse, error)
	GetBookableDates(ctx context.Context, req *BookableDatesRequest) (*BookableDatesResponse, error)
}

func RegisterAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetAvailability",
			Handler: unaryHandler(func(srv AvailabilityServer, ctx context.Context, req *AvailabilityRequest) (any, error) {
				return srv.GetAvailability(ctx, req)
			}, "GetAvailability"),
		},
		{
			MethodName: "GetFreeSlots",
			Handler: unaryHandler(func(srv AvailabilityServer, ctx context.Context, req *AvailabilityRequest) (any, error) {
				return srv.GetFreeSlots(ctx, req)
			}, "GetFreeSlots"),
		},
		{
			MethodName: "GetBookableDates",
			Handler: unaryHandler(func(srv AvailabilityServer, ctx context.Context, req *BookableDatesRequest) (any, error) {
				return srv.GetBookableDates(ctx, req)
			}, "GetBookableDates"),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "glowbook/availability/v1",
}

func unaryHandler[Req any](call func(AvailabilityServer, context.Context, *Req) (any, error), method string) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: availabilityMethodPrefix + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AvailabilityClient calls the availability service with the JSON codec.
type AvailabilityClient struct {
	cc grpc.ClientConnInterface
}

func NewAvailabilityClient(cc grpc.ClientConnInterface) *AvailabilityClient {
	return &AvailabilityClient{cc: cc}
}

func (c *AvailabilityClient) GetAvailability(ctx context.Context, req *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error) {
	out := new(AvailabilityResponse)
	if err := c.invoke(ctx, "GetAvailability", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityClient) GetFreeSlots(ctx context.Context, req *AvailabilityRequest, opts ...grpc.CallOption) (*FreeSlotsResponse, error) {
	out := new(FreeSlotsResponse)
	if err := c.invoke(ctx, "GetFreeSlots", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityClient) GetBookableDates(ctx context.Context, req *BookableDatesRequest, opts ...grpc.CallOption) (*BookableDatesResponse, error) {
	out := new(BookableDatesResponse)
	if err := c.invoke(ctx, "GetBookableDates", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, availabilityMethodPrefix+method, in, out, opts...)
}

type availabilityReader interface {
	GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, error)
	FreeSlots(ctx context.Context, providerID, date string) ([]models.Slot, error)
	BookableDates(ctx context.Context, providerID string) ([]string, error)
}

// AvailabilityService serves AvailabilityServer from the availability store.
type AvailabilityService struct {
	availability availabilityReader
}

func NewAvailabilityService(availability availabilityReader) *AvailabilityService {
	return &AvailabilityService{availability: availability}
}

func validateDateRequest(req *AvailabilityRequest) (string, string, error) {
	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		return "", "", status.Error(codes.InvalidArgument, "provider_id is required")
	}
	date := strings.TrimSpace(req.Date)
	if date == "" {
		return "", "", status.Error(codes.InvalidArgument, "date is required")
	}
	if _, err := schedule.ParseDate(date); err != nil {
		return "", "", status.Error(codes.InvalidArgument, "invalid date format; expected YYYY-MM-DD")
	}
	return providerID, date, nil
}

func (s *AvailabilityService) GetAvailability(ctx context.Context, req *AvailabilityRequest) (*AvailabilityResponse, error) {
	providerID, date, err := validateDateRequest(req)
	if err != nil {
		return nil, err
	}
	intervals, err := s.availability.GetAvailability(ctx, providerID, date)
	if err != nil {
		return nil, grpcError(err, "failed to get availability")
	}
	if intervals == nil {
		intervals = []models.Interval{}
	}
	return &AvailabilityResponse{ProviderID: providerID, Date: date, Intervals: intervals}, nil
}

func (s *AvailabilityService) GetFreeSlots(ctx context.Context, req *AvailabilityRequest) (*FreeSlotsResponse, error) {
	providerID, date, err := validateDateRequest(req)
	if err != nil {
		return nil, err
	}
	slots, err := s.availability.FreeSlots(ctx, providerID, date)
	if err != nil {
		return nil, grpcError(err, "failed to get free slots")
	}
	return &FreeSlotsResponse{ProviderID: providerID, Date: date, Slots: slots}, nil
}

func (s *AvailabilityService) GetBookableDates(ctx context.Context, req *BookableDatesRequest) (*BookableDatesResponse, error) {
	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		return nil, status.Error(codes.InvalidArgument, "provider_id is required")
	}
	dates, err := s.availability.BookableDates(ctx, providerID)
	if err != nil {
		return nil, grpcError(err, "failed to get bookable dates")
	}
	if dates == nil {
		dates = []string{}
	}
	return &BookableDatesResponse{ProviderID: providerID, Dates: dates}, nil
}

func grpcError(err error, msg string) error {
	if errors.Is(err, service.ErrInvalidInput) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, msg)
}
