package grpc

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"mangahub/pkg/models"
)

const serviceName = "mangahub.v1.MangaHub"

// Reply is the uniform response envelope. Domain failures surface as
// success=false with the error message; the transport call itself
// succeeds, so programmatic clients branch on Success, not on RPC
// status codes.
type Reply struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func ok(data interface{}) (*Reply, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return &Reply{Success: false, Error: "internal encoding error"}, nil
	}
	return &Reply{Success: true, Data: raw}, nil
}

func fail(err error) (*Reply, error) {
	return &Reply{Success: false, Error: models.AsAppError(err).Message}, nil
}

// Decode unmarshals a successful reply's payload.
func (r *Reply) Decode(target interface{}) error {
	return json.Unmarshal(r.Data, target)
}

// Request messages. Field shapes mirror the REST bodies.

type GetMangaRequest struct {
	ID string `json:"id"`
}

type SearchMangaRequest = models.MangaSearchRequest

type ChapterListRequest struct {
	MangaID   string   `json:"manga_id"`
	Languages []string `json:"languages,omitempty"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

type ChapterPagesRequest struct {
	ChapterID string `json:"chapter_id"`
	Source    string `json:"source,omitempty"`
}

type LibraryMutateRequest struct {
	MangaID string `json:"manga_id"`
	Status  string `json:"status,omitempty"`
}

type RateRequest struct {
	MangaID string `json:"manga_id"`
	Rating  int    `json:"rating"`
}

type RatingStatsRequest struct {
	MangaID string `json:"manga_id"`
}

type Empty struct{}

// MangaHubServer is the unary intent set, mirroring the REST surface.
type MangaHubServer interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*Reply, error)
	Login(ctx context.Context, req *models.LoginRequest) (*Reply, error)
	GetProfile(ctx context.Context, req *Empty) (*Reply, error)

	GetManga(ctx context.Context, req *GetMangaRequest) (*Reply, error)
	SearchManga(ctx context.Context, req *SearchMangaRequest) (*Reply, error)
	GetChapterList(ctx context.Context, req *ChapterListRequest) (*Reply, error)
	GetChapterPages(ctx context.Context, req *ChapterPagesRequest) (*Reply, error)

	GetLibrary(ctx context.Context, req *Empty) (*Reply, error)
	AddToLibrary(ctx context.Context, req *LibraryMutateRequest) (*Reply, error)
	RemoveFromLibrary(ctx context.Context, req *LibraryMutateRequest) (*Reply, error)

	UpdateProgress(ctx context.Context, req *models.UpdateProgressRequest) (*Reply, error)

	RateManga(ctx context.Context, req *RateRequest) (*Reply, error)
	DeleteRating(ctx context.Context, req *RatingStatsRequest) (*Reply, error)
	GetMangaRatingStats(ctx context.Context, req *RatingStatsRequest) (*Reply, error)
}

// callerFromContext extracts verified claims placed there by the auth
// interceptor. Nil when the call was anonymous.
type claimsKey struct{}

func callerFromContext(ctx context.Context) *models.TokenClaims {
	claims, _ := ctx.Value(claimsKey{}).(*models.TokenClaims)
	return claims
}

// TokenValidator verifies a bearer token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.TokenClaims, error)
}

// AuthInterceptor resolves bearer metadata into context claims. It does
// not reject anonymous calls; each method decides whether it needs a
// caller.
func AuthInterceptor(validator TokenValidator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if md, mdOK := metadata.FromIncomingContext(ctx); mdOK {
			if values := md.Get("authorization"); len(values) > 0 {
				token := strings.TrimPrefix(values[0], "Bearer ")
				if claims, err := validator.ValidateToken(token); err == nil {
					ctx = context.WithValue(ctx, claimsKey{}, claims)
				}
			}
		}
		return handler(ctx, req)
	}
}

func unaryHandler[Req any](method string, invoke func(MangaHubServer, context.Context, *Req) (*Reply, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return invoke(srv.(MangaHubServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return invoke(srv.(MangaHubServer), ctx, req.(*Req))
		})
	}
}

// ServiceDesc is the hand-written descriptor for the unary intent set.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MangaHubServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler("Register", MangaHubServer.Register)},
		{MethodName: "Login", Handler: unaryHandler("Login", MangaHubServer.Login)},
		{MethodName: "GetProfile", Handler: unaryHandler("GetProfile", MangaHubServer.GetProfile)},
		{MethodName: "GetManga", Handler: unaryHandler("GetManga", MangaHubServer.GetManga)},
		{MethodName: "SearchManga", Handler: unaryHandler("SearchManga", MangaHubServer.SearchManga)},
		{MethodName: "GetChapterList", Handler: unaryHandler("GetChapterList", MangaHubServer.GetChapterList)},
		{MethodName: "GetChapterPages", Handler: unaryHandler("GetChapterPages", MangaHubServer.GetChapterPages)},
		{MethodName: "GetLibrary", Handler: unaryHandler("GetLibrary", MangaHubServer.GetLibrary)},
		{MethodName: "AddToLibrary", Handler: unaryHandler("AddToLibrary", MangaHubServer.AddToLibrary)},
		{MethodName: "RemoveFromLibrary", Handler: unaryHandler("RemoveFromLibrary", MangaHubServer.RemoveFromLibrary)},
		{MethodName: "UpdateProgress", Handler: unaryHandler("UpdateProgress", MangaHubServer.UpdateProgress)},
		{MethodName: "RateManga", Handler: unaryHandler("RateManga", MangaHubServer.RateManga)},
		{MethodName: "DeleteRating", Handler: unaryHandler("DeleteRating", MangaHubServer.DeleteRating)},
		{MethodName: "GetMangaRatingStats", Handler: unaryHandler("GetMangaRatingStats", MangaHubServer.GetMangaRatingStats)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mangahub/v1",
}
