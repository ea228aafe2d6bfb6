package transcribe

import (
	"context"

	"VoiceBank/internal/models"
	stores "VoiceBank/pkg/storage"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Transcriber 把音频转成文本
type Transcriber interface {
	Transcribe(ctx context.Context, key string) (string, error)
}

type whisperTranscriber struct {
	client *openai.Client
	store  stores.Store
	model  string
	logger *logrus.Logger
}

// NewWhisper 创建基于 Whisper 的转写器
func NewWhisper(apiKey, baseURL, model string, store stores.Store, logger *logrus.Logger) Transcriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &whisperTranscriber{
		client: openai.NewClientWithConfig(cfg),
		store:  store,
		model:  model,
		logger: logger,
	}
}

func (w *whisperTranscriber) Transcribe(ctx context.Context, key string) (string, error) {
	rc, _, err := w.store.Read(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   rc,
		FilePath: key, // 文件名仅用于推断容器格式
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Worker 批量转写未处理的录音，由调度器周期触发
type Worker struct {
	db     *gorm.DB
	t      Transcriber
	batch  int
	logger *logrus.Logger
}

func NewWorker(db *gorm.DB, t Transcriber, batch int, logger *logrus.Logger) *Worker {
	if batch <= 0 {
		batch = 10
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Worker{db: db, t: t, batch: batch, logger: logger}
}

// Run 取一批待转写录音逐条处理，单条失败不影响其余
func (w *Worker) Run(ctx context.Context) {
	recs, err := models.GetUntranscribedRecordings(w.db, w.batch)
	if err != nil {
		w.logger.WithError(err).Warn("list untranscribed recordings")
		return
	}
	for _, rec := range recs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		text, err := w.t.Transcribe(ctx, rec.StorageKey)
		if err != nil {
			w.logger.WithError(err).WithField("recording", rec.ID).Warn("transcription failed")
			continue
		}
		if err := models.SaveTranscription(w.db, rec.ID, text); err != nil {
			w.logger.WithError(err).WithField("recording", rec.ID).Warn("save transcription")
		}
	}
}
