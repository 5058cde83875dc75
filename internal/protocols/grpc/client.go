package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"mangahub/pkg/models"
)

// Client is a thin typed wrapper over a gRPC connection to the gateway.
type Client struct {
	conn  *grpc.ClientConn
	token string
}

// Dial connects to the gateway's gRPC listener.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// SetToken attaches a bearer token to subsequent calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req interface{}) (*Reply, error) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	reply := &Reply{}
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, reply); err != nil {
		return nil, fmt.Errorf("grpc %s: %w", method, err)
	}
	return reply, nil
}

func (c *Client) Register(ctx context.Context, req *models.RegisterRequest) (*Reply, error) {
	return c.invoke(ctx, "Register", req)
}

func (c *Client) Login(ctx context.Context, req *models.LoginRequest) (*Reply, error) {
	return c.invoke(ctx, "Login", req)
}

func (c *Client) GetProfile(ctx context.Context) (*Reply, error) {
	return c.invoke(ctx, "GetProfile", &Empty{})
}

func (c *Client) GetManga(ctx context.Context, id string) (*Reply, error) {
	return c.invoke(ctx, "GetManga", &GetMangaRequest{ID: id})
}

func (c *Client) SearchManga(ctx context.Context, req *SearchMangaRequest) (*Reply, error) {
	return c.invoke(ctx, "SearchManga", req)
}

func (c *Client) GetChapterList(ctx context.Context, req *ChapterListRequest) (*Reply, error) {
	return c.invoke(ctx, "GetChapterList", req)
}

func (c *Client) GetChapterPages(ctx context.Context, req *ChapterPagesRequest) (*Reply, error) {
	return c.invoke(ctx, "GetChapterPages", req)
}

func (c *Client) GetLibrary(ctx context.Context) (*Reply, error) {
	return c.invoke(ctx, "GetLibrary", &Empty{})
}

func (c *Client) AddToLibrary(ctx context.Context, mangaID, status string) (*Reply, error) {
	return c.invoke(ctx, "AddToLibrary", &LibraryMutateRequest{MangaID: mangaID, Status: status})
}

func (c *Client) RemoveFromLibrary(ctx context.Context, mangaID string) (*Reply, error) {
	return c.invoke(ctx, "RemoveFromLibrary", &LibraryMutateRequest{MangaID: mangaID})
}

func (c *Client) UpdateProgress(ctx context.Context, req *models.UpdateProgressRequest) (*Reply, error) {
	return c.invoke(ctx, "UpdateProgress", req)
}

func (c *Client) RateManga(ctx context.Context, mangaID string, rating int) (*Reply, error) {
	return c.invoke(ctx, "RateManga", &RateRequest{MangaID: mangaID, Rating: rating})
}

func (c *Client) DeleteRating(ctx context.Context, mangaID string) (*Reply, error) {
	return c.invoke(ctx, "DeleteRating", &RatingStatsRequest{MangaID: mangaID})
}

func (c *Client) GetMangaRatingStats(ctx context.Context, mangaID string) (*Reply, error) {
	return c.invoke(ctx, "GetMangaRatingStats", &RatingStatsRequest{MangaID: mangaID})
}
