package scenario

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type stubGenerator struct {
	requests []Request
	respond  func(req Request) (string, error)
}

func (s *stubGenerator) GenerateJSON(_ context.Context, req Request) (string, error) {
	s.requests = append(s.requests, req)
	return s.respond(req)
}

func quietGenerator(stub *stubGenerator) *Generator {
	return NewGenerator(stub, WithGeneratorLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestGenerator_Generate(t *testing.T) {
	stub := &stubGenerator{respond: func(Request) (string, error) { return sampleScript, nil }}

	s, err := quietGenerator(stub).Generate(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(s.Phases) != 1 {
		t.Errorf("phases = %d; want 1", len(s.Phases))
	}

	if len(stub.requests) != 1 {
		t.Fatalf("requests = %d; want 1", len(stub.requests))
	}
	req := stub.requests[0]
	if req.System != SystemInstruction || req.Schema == nil {
		t.Error("request missing system instruction or schema")
	}
	if req.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v; want %v", req.Temperature, DefaultTemperature)
	}
	if !strings.Contains(req.Prompt, "part 1 of 2") {
		t.Errorf("Prompt = %q", req.Prompt)
	}
}

func TestGenerator_InvalidConfigSkipsBackend(t *testing.T) {
	stub := &stubGenerator{respond: func(Request) (string, error) { return sampleScript, nil }}

	cfg := validConfig()
	cfg.Acts = nil
	_, err := quietGenerator(stub).Generate(context.Background(), cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v; want ErrInvalidConfig", err)
	}
	if len(stub.requests) != 0 {
		t.Errorf("requests = %d; want 0", len(stub.requests))
	}
}

func TestGenerator_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		resp string
		err  error
		want error
	}{
		{"backend generation error passes through", "", NewGenerationError(KindBlocked, errors.New("SAFETY")), ErrBlocked},
		{"transport error is unavailable", "", errors.New("connection refused"), ErrUnavailable},
		{"malformed body", "not json", nil, ErrMalformed},
		{"empty body", "", nil, ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubGenerator{respond: func(Request) (string, error) { return tt.resp, tt.err }}
			_, err := quietGenerator(stub).Generate(context.Background(), validConfig())
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestGenerator_GenerateBoth(t *testing.T) {
	stub := &stubGenerator{respond: func(Request) (string, error) { return sampleScript, nil }}

	parts, err := quietGenerator(stub).GenerateBoth(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("GenerateBoth: %v", err)
	}
	if parts[0] == nil || parts[1] == nil {
		t.Fatal("GenerateBoth returned a nil part")
	}
	if len(stub.requests) != 2 || !strings.Contains(stub.requests[1].Prompt, "part 2 of 2") {
		t.Errorf("second request prompt = %q", stub.requests[1].Prompt)
	}
}

func TestGenerator_GenerateBothStopsOnFirstFailure(t *testing.T) {
	stub := &stubGenerator{respond: func(Request) (string, error) {
		return "", NewGenerationError(KindQuota, errors.New("429"))
	}}

	_, err := quietGenerator(stub).GenerateBoth(context.Background(), validConfig())
	if !errors.Is(err, ErrQuota) || !strings.Contains(err.Error(), "part 1") {
		t.Fatalf("err = %v; want part 1 quota error", err)
	}
	if len(stub.requests) != 1 {
		t.Errorf("requests = %d; want 1", len(stub.requests))
	}
}
