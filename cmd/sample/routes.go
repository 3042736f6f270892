package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bjaus/bind"
)

const readHeaderTimeout = 10 * time.Second

func newRouter(cfg bind.Config, logger *zap.Logger, store *userStore) *bind.Router {
	services := bind.NewServices()
	bind.Provide(services, store)

	r := bind.New(
		bind.WithTitle("Sample API"),
		bind.WithVersion("1.0.0"),
		bind.WithConfig(cfg),
		bind.WithLogger(logger),
		bind.WithServices(services),
		bind.WithServers(bind.Server{URL: "http://localhost:8080", Description: "local"}),
		bind.WithTagDescriptions(map[string]string{
			"users":     "User management",
			"streaming": "Long-lived responses",
		}),
	)

	r.Use(bind.Recovery(logger), bind.RequestID(), bind.Logger(logger))

	r.ServeSpec("/openapi.json")
	r.ServeSpecYAML("/openapi.yaml")
	r.ServeDocs("/docs", bind.WithDocsTitle("Sample API"))

	v1 := r.Group("/v1", bind.WithGroupTags("v1"))

	bind.Get(v1, "/health", handleHealth,
		bind.WithSummary("Health check"),
		bind.WithTags("ops"),
	)
	bind.Get(v1, "/users", handleListUsers,
		bind.WithSummary("List users"),
		bind.WithDescription("Returns all users, with optional filtering by role."),
		bind.WithTags("users"),
		bind.WithSerializeOptions(bind.SerializeOptions{ByAlias: true, ExcludeNone: true}),
	)
	bind.Post(v1, "/users", handleCreateUser,
		bind.WithStatus(http.StatusCreated),
		bind.WithSummary("Create user"),
		bind.WithTags("users"),
		bind.WithErrors(http.StatusTooManyRequests),
		bind.WithGuards(bind.RateLimit(bind.RateLimitConfig{Rate: 5, Burst: 10})),
	)
	bind.Get(v1, "/users/{id:int}", handleGetUser,
		bind.WithSummary("Get user by ID"),
		bind.WithTags("users"),
	)
	bind.Delete(v1, "/users/{id:int}", handleDeleteUser,
		bind.WithSummary("Delete user"),
		bind.WithTags("users"),
	)
	bind.Post(v1, "/users/{id:int}/avatar", handleUploadAvatar,
		bind.WithSummary("Upload avatar"),
		bind.WithTags("users", "files"),
	)
	bind.Get(v1, "/users/{id:int}/avatar", handleDownloadAvatar,
		bind.WithSummary("Download avatar"),
		bind.WithTags("users", "files"),
	)
	bind.Get(v1, "/users/{id:int}/card", handleUserCard,
		bind.WithSummary("User card"),
		bind.WithTags("users"),
	)
	bind.Get(v1, "/events", handleEvents,
		bind.WithSummary("Event stream"),
		bind.WithDescription("Server-Sent Events stream that emits a tick every second."),
		bind.WithTags("streaming"),
	)
	bind.Raw(v1, http.MethodGet, "/ws", echoSocket(logger), bind.OperationInfo{
		Summary:     "WebSocket echo",
		Description: "Upgrades the connection and echoes every text message.",
		Tags:        []string{"streaming"},
		Status:      http.StatusSwitchingProtocols,
	})
	bind.Get(v1, "/legacy", handleLegacy,
		bind.WithSummary("Legacy endpoint"),
		bind.WithDeprecated(),
		bind.WithTags("ops"),
	)

	return r
}

func printRoutes(w io.Writer, r *bind.Router) {
	methods := map[string]*color.Color{
		http.MethodGet:    color.New(color.FgGreen, color.Bold),
		http.MethodPost:   color.New(color.FgYellow, color.Bold),
		http.MethodPut:    color.New(color.FgBlue, color.Bold),
		http.MethodPatch:  color.New(color.FgCyan, color.Bold),
		http.MethodDelete: color.New(color.FgRed, color.Bold),
	}
	faint := color.New(color.Faint)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, rt := range r.Routes() {
		c, ok := methods[rt.Method]
		if !ok {
			c = color.New(color.Bold)
		}
		kind := "typed"
		if rt.Endpoint == nil {
			kind = "raw"
		}
		//nolint:errcheck // terminal output
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Sprint(rt.Method), rt.Pattern, faint.Sprint(kind))
	}
	tw.Flush() //nolint:errcheck,gosec // terminal output
}

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

type HealthResp struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type ListUsersReq struct {
	Role   *string    `query:"role" doc:"Filter by role" enum:"admin,member"`
	Limit  int        `query:"limit" doc:"Max results" default:"50" minimum:"1" maximum:"100"`
	Offset int        `query:"offset" doc:"Pagination offset" default:"0" minimum:"0"`
	Store  *userStore `inject:""`
}

type ListUsersResp struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

type CreateUserBody struct {
	Name  string  `json:"name" doc:"Display name" minLength:"1" maxLength:"80"`
	Email string  `json:"email" doc:"Email address" validate:"email"`
	Role  *string `json:"role,omitempty" doc:"User role" enum:"admin,member" default:"member"`
}

type CreateUserReq struct {
	Body   CreateUserBody
	Store  *userStore `inject:""`
	Tasks  *bind.BackgroundTasks
	Logger *zap.Logger
}

// Validate rejects reserved names.
func (r *CreateUserReq) Validate() error {
	if strings.EqualFold(strings.TrimSpace(r.Body.Name), "root") {
		return bind.Error(http.StatusUnprocessableEntity, "name is reserved")
	}
	return nil
}

type UserByIDReq struct {
	ID    int        `path:"id" doc:"User ID"`
	Store *userStore `inject:""`
}

type UploadAvatarReq struct {
	ID      int              `path:"id" doc:"User ID"`
	Caption *string          `form:"caption"`
	Avatar  *bind.UploadFile `file:"avatar"`
	Store   *userStore       `inject:""`
}

type LegacyResp struct {
	Message string `json:"message"`
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func handleHealth(_ context.Context, _ *bind.Void) (*HealthResp, error) {
	return &HealthResp{Status: "ok", Time: time.Now()}, nil
}

func handleListUsers(_ context.Context, req *ListUsersReq) (*ListUsersResp, error) {
	role := ""
	if req.Role != nil {
		role = *req.Role
	}
	users := req.Store.list(role)
	total := len(users)

	if req.Offset > len(users) {
		users = nil
	} else {
		users = users[req.Offset:]
	}
	if req.Limit < len(users) {
		users = users[:req.Limit]
	}
	return &ListUsersResp{Users: users, Total: total}, nil
}

func handleCreateUser(_ context.Context, req *CreateUserReq) (*User, error) {
	role := "member"
	if req.Body.Role != nil {
		role = *req.Body.Role
	}
	user := req.Store.create(req.Body.Name, req.Body.Email, role)
	logger := req.Logger
	req.Tasks.Add(func(context.Context) error {
		logger.Info("sending welcome email", zap.Int("user", user.ID), zap.String("email", user.Email))
		return nil
	})
	return user, nil
}

func handleGetUser(_ context.Context, req *UserByIDReq) (*User, error) {
	user, ok := req.Store.get(req.ID)
	if !ok {
		return nil, bind.Errorf(http.StatusNotFound, "user %d not found", req.ID)
	}
	return user, nil
}

func handleDeleteUser(_ context.Context, req *UserByIDReq) (*bind.Void, error) {
	if !req.Store.delete(req.ID) {
		return nil, bind.Errorf(http.StatusNotFound, "user %d not found", req.ID)
	}
	return nil, nil
}

func handleUploadAvatar(ctx context.Context, req *UploadAvatarReq) (*User, error) {
	if _, ok := req.Store.get(req.ID); !ok {
		return nil, bind.Errorf(http.StatusNotFound, "user %d not found", req.ID)
	}
	data, err := req.Avatar.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	caption := ""
	if req.Caption != nil {
		caption = *req.Caption
	}
	user, _ := req.Store.setAvatar(req.ID, avatar{
		data:        data,
		contentType: req.Avatar.ContentType,
		filename:    req.Avatar.Filename,
		caption:     caption,
	})
	return user, nil
}

func handleDownloadAvatar(_ context.Context, req *UserByIDReq) (*bind.File, error) {
	av, ok := req.Store.getAvatar(req.ID)
	if !ok {
		return nil, bind.Errorf(http.StatusNotFound, "avatar not found for user %d", req.ID)
	}
	return &bind.File{
		Filename:    av.filename,
		ContentType: av.contentType,
		Body:        bytes.NewReader(av.data),
		Inline:      true,
	}, nil
}

func handleUserCard(_ context.Context, req *UserByIDReq) (*bind.HTML, error) {
	user, ok := req.Store.get(req.ID)
	if !ok {
		return nil, bind.Errorf(http.StatusNotFound, "user %d not found", req.ID)
	}
	return &bind.HTML{Component: userCard(user)}, nil
}

func handleEvents(ctx context.Context, _ *bind.Void) (*bind.SSEStream, error) {
	ch := make(chan bind.SSEEvent)

	go func() {
		defer close(ch)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for i := 1; i <= 30; i++ {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				ch <- bind.SSEEvent{
					ID:    strconv.Itoa(i),
					Event: "tick",
					Data:  map[string]any{"time": t.Format(time.RFC3339), "seq": i},
				}
			}
		}
	}()

	return &bind.SSEStream{Events: ch}, nil
}

func handleLegacy(_ context.Context, _ *bind.Void) (*LegacyResp, error) {
	return &LegacyResp{Message: "This endpoint is deprecated. Use /v1/health instead."}, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func echoSocket(logger *zap.Logger) bind.RawHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close() //nolint:errcheck // connection teardown

		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("websocket read failed", zap.Error(err))
				}
				return
			}
			if err := conn.WriteMessage(kind, msg); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
