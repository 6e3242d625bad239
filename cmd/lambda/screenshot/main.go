package main

import (
	"context"

	"screenshot-lambda/internal/config"
	"screenshot-lambda/internal/handlers"
	"screenshot-lambda/pkg/lambda"
	"screenshot-lambda/pkg/server"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"
)

var manager *server.Manager

func init() {
	cfg, err := config.GetOptimizedConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	manager = server.GetManager()
	if err := manager.Initialize(cfg); err != nil {
		panic("Failed to initialize container: " + err.Error())
	}
}

func handler(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	container, err := manager.GetContainer(ctx)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	screenshotHandler := handlers.NewScreenshotHandler(container.Orchestrator, container.Logger)

	resp, err := screenshotHandler.HandleScreenshot(ctx, lambda.RequestFromAPIGateway(event))
	if err != nil {
		// Failing the invocation is the contract: no 200 without an image
		return events.APIGatewayProxyResponse{}, err
	}

	return resp.ToAPIGateway(), nil
}

func main() {
	awslambda.Start(handler)
}
