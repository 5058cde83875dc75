package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"

	"mangahub/internal/core"
	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

// Service implements MangaHubServer over the domain services. It is the
// gRPC twin of the REST handlers: same services, same side effects.
type Service struct {
	auth     core.AuthService
	catalog  core.CatalogService
	library  core.LibraryService
	progress core.ProgressService
	rating   core.RatingService
}

// NewService creates the unary service.
func NewService(auth core.AuthService, catalog core.CatalogService, library core.LibraryService, progress core.ProgressService, rating core.RatingService) *Service {
	return &Service{
		auth:     auth,
		catalog:  catalog,
		library:  library,
		progress: progress,
		rating:   rating,
	}
}

// requireCaller fetches the authenticated claims or a uniform failure.
func requireCaller(ctx context.Context) (*models.TokenClaims, *Reply) {
	claims := callerFromContext(ctx)
	if claims == nil {
		return nil, &Reply{Success: false, Error: "authentication required"}
	}
	return claims, nil
}

func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*Reply, error) {
	profile, err := s.auth.Register(ctx, req)
	if err != nil {
		return fail(err)
	}
	return ok(profile)
}

func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*Reply, error) {
	resp, err := s.auth.Login(ctx, req)
	if err != nil {
		return fail(err)
	}
	return ok(resp)
}

func (s *Service) GetProfile(ctx context.Context, _ *Empty) (*Reply, error) {
	claims, deny := requireCaller(ctx)
	if deny != nil {
		return deny, nil
	}
	profile, err := s.auth.GetProfile(ctx, claims.UserID)
	if err != nil {
		return fail(err)
	}
	return ok(profile)
}

func (s *Service) GetManga(ctx context.Context, req *GetMangaRequest) (*Reply, error) {
	m, err := s.catalog.GetManga(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return ok(m)
}

func (s *Service) SearchManga(ctx context.Context, req *SearchMangaRequest) (*Reply, error) {
	resp, err := s.catalog.Search(ctx, req)
	if err != nil {
		return fail(err)
	}
	return ok(resp)
}

func (s *Service) GetChapterList(ctx context.Context, req *ChapterListRequest) (*Reply, error) {
	chapters, total, err := s.catalog.ListChapters(ctx, req.MangaID, req.Languages, req.Limit, req.Offset)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"chapters": chapters, "total": total})
}

func (s *Service) GetChapterPages(ctx context.Context, req *ChapterPagesRequest) (*Reply, error) {
	ch, err := s.catalog.GetChapterPages(ctx, req.ChapterID, req.Source)
	if err != nil {
		return fail(err)
	}
	return ok(ch)
}

func (s *Service) GetLibrary(ctx context.Context, _ *Empty) (*Reply, error) {
	claims, deny := requireCaller(ctx)
	if deny != nil {
		return deny, nil
	}
	items, err := s.library.List(ctx, claims.UserID)
	if err != nil {
		return fail(err)
	}
	return ok(items)
}

func (s *Service) AddToLibrary(ctx context.Context, req *LibraryMutateRequest) (*Reply, error) {
	claims, deny := requireCaller(ctx)
	if deny != nil {
		return deny, nil
	}
	entry, err := s.library.Add(ctx, claims.UserID, &models.AddToLibraryRequest{
		MangaID: req.MangaID,
		Status:  req.Status,
	})
	if err != nil {
		return fail(err)
	}
	return ok(entry)
}

func (s *Service) RemoveFromLibrary(ctx context.Context, req *LibraryMutateRequest) (*Reply, error) {
	claims, deny := requireCaller(ctx)
	if deny != nil {
		return deny, nil
	}
	if err := s.library.Remove(ctx, claims.UserID, req.MangaID); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"manga_id": req.MangaID})
}

func (s *Service) UpdateProgress(ctx context.Context, req *models.UpdateProgressRequest) (*Reply, error) {
	claims, deny := requireCaller(ctx)
	if deny != nil {
		return deny, nil
	}
	event, err := s.progress.Update(ctx, claims.UserID, claims.Username, req)
	if err != nil {
		return fail(err)
	}
	return ok(event)
}

func (s *Service) RateManga(ctx context.Context, req *RateRequest) (*Reply, error) {
	claims, deny := requireCaller(ctx)
	if deny != nil {
		return deny, nil
	}
	stats, err := s.rating.Rate(ctx, claims.UserID, req.MangaID, req.Rating)
	if err != nil {
		return fail(err)
	}
	return ok(stats)
}

func (s *Service) DeleteRating(ctx context.Context, req *RatingStatsRequest) (*Reply, error) {
	claims, deny := requireCaller(ctx)
	if deny != nil {
		return deny, nil
	}
	stats, err := s.rating.Unrate(ctx, claims.UserID, req.MangaID)
	if err != nil {
		return fail(err)
	}
	return ok(stats)
}

func (s *Service) GetMangaRatingStats(ctx context.Context, req *RatingStatsRequest) (*Reply, error) {
	viewerID := ""
	if claims := callerFromContext(ctx); claims != nil {
		viewerID = claims.UserID
	}
	stats, err := s.rating.Stats(ctx, req.MangaID, viewerID)
	if err != nil {
		return fail(err)
	}
	return ok(stats)
}

// Server wraps the grpc.Server lifecycle.
type Server struct {
	addr   string
	server *grpc.Server
}

// NewServer builds the gRPC listener with the JSON codec forced and the
// auth interceptor installed.
func NewServer(addr string, service *Service, validator TokenValidator) *Server {
	server := grpc.NewServer(
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(loggingInterceptor(), AuthInterceptor(validator)),
	)
	server.RegisterService(&ServiceDesc, service)
	return &Server{addr: addr, server: server}
}

func loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.GRPC(info.FullMethod, int(time.Since(start).Milliseconds()))
		return resp, err
	}
}

// Start binds and serves; blocks until Stop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen failed on %s: %w", s.addr, err)
	}
	logger.Infof("gRPC gateway listening on %s", listener.Addr())
	return s.server.Serve(listener)
}

// Stop drains in-flight RPCs and shuts down.
func (s *Server) Stop() {
	s.server.GracefulStop()
}
