package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomi-app/roomi-backend/internal/auth"
	"github.com/roomi-app/roomi-backend/internal/projects/repository"
	"github.com/roomi-app/roomi-backend/internal/render"
	"github.com/roomi-app/roomi-backend/internal/slider"
	"github.com/roomi-app/roomi-backend/internal/visualizer"
)

const planAAA = "data:image/png;base64,AAA"

type gatedRenderer struct {
	mu   sync.Mutex
	gate chan struct{}
}

func (g *gatedRenderer) Generate(_ context.Context, _ string) (render.Result, error) {
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return render.Result{RenderedImage: "data:image/png;base64,aGVsbG8="}, nil
}

type response struct {
	OK       bool                `json:"ok"`
	Error    string              `json:"error"`
	Snapshot visualizer.Snapshot `json:"snapshot"`
	Slider   slider.Layout       `json:"slider"`
}

func setup(t *testing.T, r visualizer.Renderer, generate ...gin.HandlerFunc) (*gin.Engine, *visualizer.Registry) {
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	events := visualizer.NewEvents()
	t.Cleanup(func() {
		events.Close()
		client.Close()
		mr.Close()
	})

	reg := visualizer.NewRegistry(repository.NewRedisStore(client), r, events)
	router := gin.New()
	New(reg, events).Register(router.Group("/api/v1/visualizer", auth.DevUser()), generate...)
	return router, reg
}

func call(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "u1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var resp response
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}

func TestVisualizerAPI_Lifecycle(t *testing.T) {
	r := &gatedRenderer{gate: make(chan struct{})}
	router, reg := setup(t, r)

	rr, resp := call(t, router, http.MethodPost, "/api/v1/visualizer/p1", gin.H{
		"seed": gin.H{"source_image": planAAA, "name": "Loft"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, visualizer.StateGenerating, resp.Snapshot.State)
	assert.Equal(t, 50.0, resp.Slider.Position)

	rr, resp = call(t, router, http.MethodPost, "/api/v1/visualizer/p1/regenerate", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.False(t, resp.OK)

	close(r.gate)
	reg.Wait()

	rr, resp = call(t, router, http.MethodGet, "/api/v1/visualizer/p1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, visualizer.StateReady, resp.Snapshot.State)
	assert.True(t, resp.Snapshot.Saved)
	require.NotNil(t, resp.Snapshot.Comparison)

	rr, resp = call(t, router, http.MethodPost, "/api/v1/visualizer/p1/share", gin.H{"public": true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, resp.Snapshot.Project.IsPublic)
	assert.Equal(t, visualizer.ShareSettled, resp.Snapshot.Share)

	rr, _ = call(t, router, http.MethodGet, "/api/v1/visualizer/p1/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="loft.png"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "hello", rr.Body.String())

	rr, _ = call(t, router, http.MethodPost, "/api/v1/visualizer/p1/regenerate", nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	reg.Wait()

	rr, _ = call(t, router, http.MethodDelete, "/api/v1/visualizer/p1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = call(t, router, http.MethodGet, "/api/v1/visualizer/p1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestVisualizerAPI_EmptyProject(t *testing.T) {
	router, _ := setup(t, &gatedRenderer{})

	rr, resp := call(t, router, http.MethodPost, "/api/v1/visualizer/ghost", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, visualizer.StateEmpty, resp.Snapshot.State)

	rr, _ = call(t, router, http.MethodGet, "/api/v1/visualizer/ghost/export", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestVisualizerAPI_Slider(t *testing.T) {
	router, _ := setup(t, &gatedRenderer{})
	call(t, router, http.MethodPost, "/api/v1/visualizer/p1", gin.H{
		"seed": gin.H{"source_image": planAAA, "rendered_image": planAAA},
	})

	rect := gin.H{"left": 100, "width": 200}

	_, resp := call(t, router, http.MethodPost, "/api/v1/visualizer/p1/slider", gin.H{"event": "move", "client_x": 150, "rect": rect})
	assert.Equal(t, 50.0, resp.Slider.Position)

	call(t, router, http.MethodPost, "/api/v1/visualizer/p1/slider", gin.H{"event": "begin"})
	_, resp = call(t, router, http.MethodPost, "/api/v1/visualizer/p1/slider", gin.H{"event": "move", "client_x": 150, "rect": rect})
	assert.Equal(t, 25.0, resp.Slider.Position)
	assert.Equal(t, "inset(0 75% 0 0)", resp.Slider.BeforeClip)

	_, resp = call(t, router, http.MethodPost, "/api/v1/visualizer/p1/slider", gin.H{"event": "move", "client_x": -999, "rect": rect, "touch": true})
	assert.Equal(t, 0.0, resp.Slider.Position)

	_, resp = call(t, router, http.MethodPost, "/api/v1/visualizer/p1/slider", gin.H{"event": "release"})
	assert.False(t, resp.Slider.Dragging)

	rr, _ := call(t, router, http.MethodPost, "/api/v1/visualizer/p1/slider", gin.H{"event": "wiggle"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVisualizerAPI_Stream(t *testing.T) {
	router, _ := setup(t, &gatedRenderer{})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	call(t, router, http.MethodPost, "/api/v1/visualizer/p1", gin.H{
		"seed": gin.H{"source_image": planAAA, "rendered_image": planAAA},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/visualizer/p1/events", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-Id", "u1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
		close(events)
	}()

	require.Equal(t, "initial", <-events)

	call(t, router, http.MethodDelete, "/api/v1/visualizer/p1", nil)

	var got []string
	for name := range events {
		got = append(got, name)
	}
	assert.Equal(t, []string{"update", "closed"}, got)
}

func TestVisualizerAPI_GenerateMiddlewareGuardsActivateAndRegenerate(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	budget := 2
	limit := func(c *gin.Context) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c.Request.Method+" "+c.FullPath())
		if budget == 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "rate limit exceeded"})
			return
		}
		budget--
	}
	router, reg := setup(t, &gatedRenderer{}, limit)

	rr, _ := call(t, router, http.MethodPost, "/api/v1/visualizer/p1", gin.H{"seed": gin.H{"source_image": planAAA}})
	require.Equal(t, http.StatusOK, rr.Code)
	reg.Wait()

	rr, _ = call(t, router, http.MethodGet, "/api/v1/visualizer/p1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, _ = call(t, router, http.MethodPost, "/api/v1/visualizer/p1/regenerate", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	reg.Wait()

	rr, resp := call(t, router, http.MethodPost, "/api/v1/visualizer/p2", gin.H{"seed": gin.H{"source_image": planAAA}})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.False(t, resp.OK)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /api/v1/visualizer/:id",
		"POST /api/v1/visualizer/:id/regenerate",
		"POST /api/v1/visualizer/:id",
	}, seen)
	_, ok := reg.Lookup("u1", "p2")
	assert.False(t, ok)
}
