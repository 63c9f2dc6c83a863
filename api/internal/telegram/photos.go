package telegram

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"paperai/api/internal/gateway"
)

// Telegram bot API отдаёт файлы до 20 МБ.
const maxDownloadBytes = 20 << 20

func batchKey(msg *tgbotapi.Message) string {
	if msg.MediaGroupID != "" {
		return "grp:" + msg.MediaGroupID
	}
	return "chat:" + strconv.FormatInt(msg.Chat.ID, 10)
}

// fileRef picks the attachment of a message: the largest photo size or the document.
func fileRef(msg *tgbotapi.Message) (fileID, name, mime string, ok bool) {
	switch {
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1]
		return ph.FileID, ph.FileUniqueID + ".jpg", "image/jpeg", true
	case msg.Document != nil:
		d := msg.Document
		name = d.FileName
		if name == "" {
			name = d.FileUniqueID
		}
		return d.FileID, name, d.MimeType, true
	}
	return "", "", "", false
}

func (r *Router) acceptFile(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	fileID, name, mime, ok := fileRef(msg)
	if !ok {
		return
	}
	if msg.Document != nil && msg.Document.FileSize > maxDownloadBytes {
		r.send(cid, "❌ File is too large (max 20 MB).")
		return
	}

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.send(cid, "❌ Could not fetch the file: "+err.Error())
		return
	}
	data, err := download(url, maxDownloadBytes)
	if err != nil {
		r.Log.Warn().Err(err).Int64("chat", cid).Msg("telegram download")
		r.send(cid, "❌ Could not download the file.")
		return
	}

	wait := r.debounce
	if wait <= 0 {
		wait = debounce
	}
	f := gateway.InboundFile{ID: fileID, Name: name, MimeType: mime, Base64Payload: base64.StdEncoding.EncodeToString(data)}
	switch n := r.batches.add(batchKey(msg), cid, f, wait, r.flush); n {
	case 0:
		r.send(cid, fmt.Sprintf("Only the first %d files of an album are used.", maxBatchFiles))
	case 1:
		r.send(cid, "Got it. If the material spans several pages, send them as one album; generating the paper...")
	}
}

func (r *Router) flush(b *fileBatch) {
	files := r.batches.take(b)
	if len(files) == 0 {
		return
	}
	r.generate(b.ChatID, files)
}

// download fetches url and fails when the body is longer than limit bytes.
func download(url string, limit int64) ([]byte, error) {
	resp, err := httpClient().Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
