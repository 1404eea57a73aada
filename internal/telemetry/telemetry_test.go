package telemetry

import (
	"context"
	"testing"
)

func TestDialEmptyURLDisablesPublishing(t *testing.T) {
	p, err := Dial("", "mlat-results")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if p != nil {
		t.Fatal("expected nil publisher for empty URL")
	}
}

func TestNilPublisherPublishIsNoop(t *testing.T) {
	var p *Publisher

	if err := p.Publish(context.Background(), ResultEvent{ICAO: 0xABCDEF}); err != nil {
		t.Errorf("Publish on nil publisher returned error: %v", err)
	}
}

func TestNilPublisherCloseIsNoop(t *testing.T) {
	var p *Publisher
	if err := p.Close(); err != nil {
		t.Errorf("Close on nil publisher returned error: %v", err)
	}
}
