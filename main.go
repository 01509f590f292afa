// Command up-go demos the communication layer end to end: a publish/
// subscribe exchange and a request/response RPC call, both carried over
// the in-memory Transport, wired the way a unit test would but printed
// for a human to read.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/eclipse-uprotocol/up-go/comm"
	"github.com/eclipse-uprotocol/up-go/message"
	"github.com/eclipse-uprotocol/up-go/rpc"
	"github.com/eclipse-uprotocol/up-go/transport"
	"github.com/eclipse-uprotocol/up-go/transport/local"
	"github.com/eclipse-uprotocol/up-go/uattributes"
	"github.com/eclipse-uprotocol/up-go/uri"
	"github.com/eclipse-uprotocol/up-go/ustatus"
)

const (
	weatherServiceEntityID uint32 = 0x1001
	dashboardEntityID      uint32 = 0x2001

	resourceIDTemperature uint16 = 0x8001 // event resource
	resourceIDForecast    uint16 = 0x0001 // RPC method resource
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	t := local.New()

	weatherService := uri.New("", weatherServiceEntityID, 1, 0)
	dashboard := uri.New("", dashboardEntityID, 1, 0)

	if err := runPublishSubscribeDemo(ctx, t, weatherService); err != nil {
		logger.Fatal("publish/subscribe demo failed", zap.Error(err))
	}

	if err := runRPCDemo(ctx, t, weatherService, dashboard, logger); err != nil {
		logger.Fatal("rpc demo failed", zap.Error(err))
	}
}

// runPublishSubscribeDemo has the dashboard subscribe to the weather
// service's temperature topic, then has the weather service publish one
// reading.
func runPublishSubscribeDemo(ctx context.Context, t transport.Transport, weatherService uri.URI) error {
	publisher := comm.NewPublisher(t, weatherService)

	received := make(chan string, 1)
	listener := transport.ListenerFunc(func(_ context.Context, msg *message.Message) {
		received <- string(msg.Payload)
	})

	topicFilter := uri.New(weatherService.Authority, weatherService.EntityID, uri.WildcardEntityVersion, resourceIDTemperature)
	if st := publisher.StartListening(ctx, topicFilter, listener); !st.IsOK() {
		return fmt.Errorf("subscribe to temperature topic: %s", st.Error())
	}
	defer publisher.StopListening(ctx, topicFilter, listener)

	if st := publisher.Publish(ctx, resourceIDTemperature, []byte("21.5C"), uattributes.PayloadFormatText); !st.IsOK() {
		return fmt.Errorf("publish temperature: %s", st.Error())
	}

	select {
	case reading := <-received:
		fmt.Printf("dashboard received temperature reading: %s\n", reading)
	case <-time.After(time.Second):
		return fmt.Errorf("dashboard did not receive a temperature reading in time")
	}
	return nil
}

// runRPCDemo registers a forecast RPC endpoint on the weather service and
// has the dashboard invoke it.
func runRPCDemo(ctx context.Context, t transport.Transport, weatherService, dashboard uri.URI, logger *zap.Logger) error {
	server := rpc.NewServer(t, weatherService, logger)

	handler := rpc.RequestHandlerFunc(func(_ context.Context, _ uint16, _ *uattributes.Attributes, payload []byte) ([]byte, *ustatus.Status) {
		return []byte(fmt.Sprintf("forecast for %q: sunny, 24C", string(payload))), ustatus.OK()
	})
	if st := server.RegisterEndpoint(ctx, nil, resourceIDForecast, handler); !st.IsOK() {
		return fmt.Errorf("register forecast endpoint: %s", st.Error())
	}
	defer server.UnregisterEndpoint(ctx, nil, resourceIDForecast, handler)

	client, st := rpc.NewClient(ctx, t, dashboard)
	if !st.IsOK() {
		return fmt.Errorf("build rpc client: %s", st.Error())
	}

	method := uri.New(weatherService.Authority, weatherService.EntityID, weatherService.EntityVersion, resourceIDForecast)
	resp, st := client.InvokeMethod(ctx, method, rpc.CallOptions{TTL: 2000}, []byte("tomorrow"), uattributes.PayloadFormatText)
	if !st.IsOK() {
		return fmt.Errorf("invoke forecast method: %s", st.Error())
	}

	fmt.Printf("dashboard received rpc response: %s\n", resp.Payload)
	return nil
}
