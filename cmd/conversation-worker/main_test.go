package main

import (
	"bytes"
	"strings"
	"testing"

	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

func TestAsynqRedisOpt(t *testing.T) {
	opt := asynqRedisOpt(&appconfig.Config{RedisAddr: "redis:6379", RedisPassword: "secret"})
	if opt.Addr != "redis:6379" || opt.Password != "secret" {
		t.Fatalf("unexpected opts: %+v", opt)
	}
	if opt.TLSConfig != nil {
		t.Fatalf("expected no TLS config")
	}

	opt = asynqRedisOpt(&appconfig.Config{RedisAddr: "redis:6379", RedisTLS: true})
	if opt.TLSConfig == nil {
		t.Fatalf("expected TLS config")
	}
}

func TestAsynqLoggerRoutesThroughServiceLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newAsynqLogger(logging.NewWithWriter(&buf, "debug"))

	l.Warn("scheduler ", "lagging")
	out := buf.String()
	if !strings.Contains(out, `"msg":"scheduler lagging"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
	if !strings.Contains(out, `"component":"asynq"`) {
		t.Fatalf("expected component attribute: %s", out)
	}
}
