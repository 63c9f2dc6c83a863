package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"paperai/api/internal/app"
	"paperai/api/internal/config"
	"paperai/api/internal/handle"
	"paperai/api/internal/httpserver"
	"paperai/api/internal/logger"
	"paperai/api/internal/paper"
	"paperai/api/internal/telegram"
)

func main() {
	cfg := config.MustLoad()
	log := logger.SetupLogger(cfg.Env)
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		log.Fatal().Msg("missing required env TELEGRAM_BOT_TOKEN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build gateway")
	}
	defer a.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram bot")
	}
	bot.Debug = false
	log.Info().Str("bot", bot.Self.UserName).Msg("telegram bot authorized")

	r := &telegram.Router{
		Bot:             bot,
		Gateway:         a.Gateway,
		Log:             log,
		Defaults:        defaults(cfg.Bot),
		GenerateTimeout: cfg.HTTP.GenerateTimeout,
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Get("/healthz", handle.New(nil, nil, handle.Options{Ping: a.Ping}).Healthz)

	// --- Choose mode: Webhook vs Polling ---
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		if err := setupWebhook(mux, bot, r, webhookURL, log); err != nil {
			log.Fatal().Err(err).Msg("webhook")
		}
	} else {
		go runPolling(ctx, bot, r.HandleUpdate, log)
	}

	srv := httpserver.New(cfg.HTTP, mux)
	if err := httpserver.Run(ctx, srv, cfg.HTTP.ShutdownTimeout, log); err != nil {
		log.Error().Err(err).Msg("http server")
	}
}

func defaults(b config.BotDefaults) telegram.Settings {
	return telegram.Settings{Config: paper.PaperConfig{
		GradeLevel:     b.Grade,
		Subject:        b.Subject,
		Difficulty:     paper.Difficulty(strings.ToUpper(b.Difficulty)),
		TargetLanguage: b.Language,
		Counts:         paper.Counts{MCQ: b.MCQ, TrueFalse: b.TrueFalse, Short: b.Short, Long: b.Long},
	}}
}

// ---------------- Modes -----------------

func setupWebhook(mux chi.Router, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string, log zerolog.Logger) error {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return err
	}

	mux.Post(path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			log.Warn().Err(err).Msg("bad webhook update")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// Telegram ждёт быстрый 200, генерация идёт в фоне
		go r.HandleUpdate(*upd)
		w.WriteHeader(http.StatusOK)
	})
	log.Info().Str("path", path).Msg("webhook registered")
	return nil
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func clampDelay(d time.Duration) time.Duration {
	const (
		baseDelay = 1 * time.Second
		maxDelay  = 15 * time.Second
	)
	if d < baseDelay {
		return baseDelay
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update), log zerolog.Logger) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(retryDelayFromError(err))
			log.Warn().Err(err).Dur("retry_in", d).Msg("polling error")
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			go handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// FNV-1a: стабильный путь вебхука из токена
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
