package generator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/yourorg/liveview/internal/auth"
	"github.com/yourorg/liveview/internal/ingest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func TestPusherDeliversSamples(t *testing.T) {
	coord := ingest.NewCoordinator(ingest.Config{
		Capacity:        1000,
		RedrawThreshold: 10,
		Decoder:         ingest.Decoder{Location: time.UTC},
		Logger:          quietLogger(),
	})
	worker := ingest.NewWorker(coord, 256, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	authenticator := auth.NewAuthenticator([]string{"k1"}, quietLogger())
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.StreamInterceptor(authenticator.StreamInterceptor()))
	ingest.RegisterSampleIngestorServer(srv, ingest.NewServer(worker, quietLogger()))
	go srv.Serve(lis)
	defer srv.Stop()

	config := DefaultPusherConfig()
	config.Target = "passthrough:///bufnet"
	config.APIKey = "k1"
	config.SampleInterval = time.Millisecond
	config.PushInterval = 5 * time.Millisecond
	config.BatchSize = 8

	gen := &Generator{ID: 2, Wave: NewSine(0, 20, 1), Location: time.UTC}
	pusher := NewPusher(config, gen, quietLogger())
	err := pusher.Connect(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	pusher.Start()

	deadline := time.Now().Add(5 * time.Second)
	for coord.Stats().Ingested < 20 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out, stats %+v", coord.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}

	ack, err := pusher.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if ack.Queued != pusher.Sent() {
		t.Fatalf("expected %d queued, got %+v", pusher.Sent(), ack)
	}
	if coord.Stats().Dropped != 0 {
		t.Fatalf("expected no drops, got %d", coord.Stats().Dropped)
	}
	if len(coord.SnapshotAll(2)) == 0 {
		t.Fatal("expected channel 2 to hold samples")
	}
}
