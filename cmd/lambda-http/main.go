package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"moodfood-backend/internal/bootstrap"
	"moodfood-backend/internal/shared/config"
	"moodfood-backend/internal/shared/server/respond"
	"moodfood-backend/internal/shared/telemetry"
)

type buildFunc func(ctx context.Context) (*gin.Engine, error)

// proxy builds the router on the first invocation and reuses it while the
// execution environment stays warm.
type proxy struct {
	build   buildFunc
	once    sync.Once
	err     error
	adapter *ginadapter.GinLambdaV2
}

func (p *proxy) init(ctx context.Context) {
	start := time.Now()
	router, err := p.build(ctx)
	if err != nil {
		p.err = err
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": err.Error()})
		return
	}
	p.adapter = ginadapter.NewV2(router)
	telemetry.Info("lambda.cold_start", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (p *proxy) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	p.once.Do(func() { p.init(ctx) })
	if p.err != nil || p.adapter == nil {
		return unavailable(), nil
	}
	return p.adapter.ProxyWithContext(ctx, req)
}

func unavailable() events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{
		Code:    "service_unavailable",
		Message: "service failed to start",
	}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func buildRouter(ctx context.Context) (*gin.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return app.Router, nil
}

func main() {
	p := &proxy{build: buildRouter}
	lambda.Start(p.handle)
}
