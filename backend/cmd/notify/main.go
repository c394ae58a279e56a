package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"aleph/backend/internal/notify"
	"aleph/backend/internal/store"
	"aleph/backend/pkg/config"
	"aleph/backend/pkg/logger"
)

func main() {
	roleID := flag.String("role", "", "Foreign id of the role to notify")
	subject := flag.String("subject", "", "Message subject")
	bodyFile := flag.String("body", "", "Path to an HTML file with the message body")
	flag.Parse()

	if *roleID == "" || *subject == "" || *bodyFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()

	if !cfg.MailEnabled() {
		log.Fatal("MAIL_HOST is not configured")
	}

	body, err := os.ReadFile(*bodyFile)
	if err != nil {
		log.Fatal("Failed to read message body", zap.String("path", *bodyFile), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer st.Close()

	role, err := st.RoleByForeignID(ctx, *roleID)
	if err != nil {
		log.Fatal("Failed to load role", zap.String("role", *roleID), zap.Error(err))
	}
	if err := notify.CheckRecipient(role); err != nil {
		log.Fatal("Role cannot be notified", zap.Error(err))
	}

	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		TLS:      cfg.MailTLS,
	})
	if err != nil {
		log.Fatal("Failed to create SMTP sender", zap.Error(err))
	}

	notifier := notify.NewNotifier(cfg.AppTitle, cfg.MailFrom, sender)
	if err := notifier.NotifyRole(ctx, role, *subject, string(body)); err != nil {
		log.Fatal("Failed to notify role", zap.Stringer("role", role), zap.Error(err))
	}
}
