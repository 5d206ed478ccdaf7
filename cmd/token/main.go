package main

import (
	"fmt"
	"os"

	jwtpkg "mailtriage/backend/internal/auth/jwt"
	"mailtriage/backend/internal/config"
)

// main 为调用方签发触发接口使用的 Bearer 令牌。
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: token <subject>")
		os.Exit(1)
	}
	subject := os.Args[1]

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Trigger.JWTSecret == "" {
		fmt.Println("MAILTRIAGE_TRIGGER_JWT_SECRET is not set; the trigger endpoint accepts unauthenticated requests")
		os.Exit(1)
	}

	manager := jwtpkg.NewManager(cfg.Trigger.JWTSecret, cfg.Trigger.Issuer, cfg.Trigger.Expiry)
	token, expiresAt, err := manager.Issue(subject)
	if err != nil {
		fmt.Printf("Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Trigger token issued\n")
	fmt.Printf("  Subject:    %s\n", subject)
	fmt.Printf("  Scope:      %s\n", jwtpkg.ScopeTriageRun)
	fmt.Printf("  Expires at: %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("\n%s\n", token)
}
