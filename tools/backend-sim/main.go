package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Sakin08/Doctors-Appointment/libs/httpx"
)

func main() {
	var (
		addr      = flag.String("addr", getenv("SIM_ADDR", ":4000"), "listen address")
		secret    = flag.String("secret", getenv("SIM_JWT_SECRET", "sim-secret"), "HS256 secret for issued tokens")
		tokenTTL  = flag.Duration("token-ttl", 24*time.Hour, "lifetime of issued tokens; 0 issues tokens without exp")
		demoEmail = flag.String("demo-email", getenv("SIM_DEMO_EMAIL", "demo@example.com"), "seeded user email")
		demoPass  = flag.String("demo-password", getenv("SIM_DEMO_PASSWORD", "demo1234"), "seeded user password")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("SIM_JWT_SECRET must not be empty")
	}

	sim, err := newSimulator(*secret, *tokenTTL)
	if err != nil {
		fatal(err.Error())
	}
	if _, err := sim.addUser("Demo Patient", *demoEmail, *demoPass); err != nil {
		fatal(err.Error())
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	handler := httpx.Chain(sim.routes(), httpx.WithRequestID, httpx.WithAccessLog(logger))
	fmt.Fprintf(os.Stderr, "backend-sim listening on %s (demo user %s)\n", *addr, *demoEmail)
	if err := http.ListenAndServe(*addr, handler); err != nil {
		fatal(err.Error())
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
