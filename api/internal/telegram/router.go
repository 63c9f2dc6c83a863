// Package telegram is the bot channel of the gateway: chats send photos or
// documents and get a generated question paper back.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"paperai/api/internal/gateway"
	"paperai/api/internal/paper"
	"paperai/api/internal/util"
)

// Generator is the gateway as seen by the bot.
type Generator interface {
	Generate(ctx context.Context, clientKey string, sub gateway.Submission) paper.Outcome
}

type Router struct {
	Bot     *tgbotapi.BotAPI
	Gateway Generator
	Log     zerolog.Logger

	// Defaults are used until a chat overrides them with /set.
	Defaults Settings
	// GenerateTimeout bounds one gateway call; 0 means 180s.
	GenerateTimeout time.Duration

	chats    chatStore
	batches  batchStore
	debounce time.Duration
}

const helpText = `Send photos or PDF pages of the source material and I will build a question paper from them.
Several photos sent as one album are combined into a single paper.

Commands:
/config - show the current paper settings
/set key=value ... - change settings: grade, subject, difficulty (EASY|MEDIUM|HARD), lang, mcq, tf, short, long, engine (gemini|gpt)
/reset - back to defaults`

func ClientKey(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) }

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}
	if len(msg.Photo) > 0 || msg.Document != nil {
		r.acceptFile(msg)
		return
	}
	if strings.TrimSpace(msg.Text) != "" {
		r.send(msg.Chat.ID, "Send a photo or a PDF to generate a paper. /help for commands.")
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "config":
		r.send(cid, "Current settings:\n"+r.settings(cid).String())
	case "set":
		args := strings.TrimSpace(msg.CommandArguments())
		if args == "" {
			r.send(cid, "Usage: /set subject=Biology grade=7 mcq=5 tf=2")
			return
		}
		s, err := ParseSettings(args, r.settings(cid))
		if err != nil {
			r.send(cid, "❌ "+err.Error())
			return
		}
		r.chats.store(cid, s)
		r.send(cid, "✅ Saved:\n"+s.String())
	case "reset":
		r.chats.reset(cid)
		r.send(cid, "✅ Settings reset:\n"+r.Defaults.String())
	default:
		r.send(cid, "Unknown command. /help")
	}
}

func (r *Router) settings(chatID int64) Settings {
	if s, ok := r.chats.load(chatID); ok {
		return s
	}
	return r.Defaults
}

// generate submits one collected batch and replies with the outcome.
func (r *Router) generate(chatID int64, files []gateway.InboundFile) {
	timeout := r.GenerateTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out := r.Gateway.Generate(ctx, ClientKey(chatID), buildSubmission(r.settings(chatID), files))
	if !out.OK() {
		r.sendFailure(chatID, out.Failure)
		return
	}
	r.sendPaper(chatID, out)
}

func buildSubmission(s Settings, files []gateway.InboundFile) gateway.Submission {
	return gateway.Submission{LLMName: s.Engine, Files: files, Config: s.Config}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.Warn().Err(err).Int64("chat", chatID).Msg("telegram send")
	}
}

// sendPaper отправляет читаемую версию и JSON документом.
func (r *Router) sendPaper(chatID int64, out paper.Outcome) {
	r.send(chatID, util.Truncate(RenderPaper(*out.Paper), 3900))

	b, err := PaperJSON(out)
	if err != nil {
		r.Log.Error().Err(err).Msg("marshal paper")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "question_paper.json", Bytes: b})
	if _, err := r.Bot.Send(doc); err != nil {
		r.Log.Warn().Err(err).Int64("chat", chatID).Msg("telegram send document")
	}
}

// PaperJSON is the indented document sent to the chat: the validated bytes
// when the gateway kept them, otherwise the encoded paper.
func PaperJSON(out paper.Outcome) ([]byte, error) {
	if len(out.Raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, out.Raw, "", "  "); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.MarshalIndent(out.Paper, "", "  ")
}

func (r *Router) sendFailure(chatID int64, f *paper.Failure) {
	r.send(chatID, FailureText(f))
}

// FailureText is the chat reply for a failed generation.
func FailureText(f *paper.Failure) string {
	switch f.Kind {
	case paper.RateLimited:
		wait := int((f.RetryAfter + time.Second - 1) / time.Second)
		if wait <= 0 {
			wait = 60
		}
		return fmt.Sprintf("⏳ %s (retry in %ds)", f.Message, wait)
	case paper.InvalidRequest:
		return "❌ " + f.Message
	default:
		return fmt.Sprintf("⚠️ Generation failed (%s): %s", f.Kind, util.Truncate(f.Message, 500))
	}
}
