package notifier

import (
	"context"
	"log/slog"

	"github.com/mwarner/jobscout/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes digests and failure notices to the given logger as
// structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendDigest logs each posting with company, title, score, and URL.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) SendDigest(ctx context.Context, postings []model.Posting) error {
	for _, p := range postings {
		n.logger.Info("matched posting",
			"company", p.Company,
			"title", p.Title,
			"location", p.Location,
			"score", p.Score(),
			"url", p.URL,
		)
	}
	n.logger.Info("digest complete", "postings", len(postings))
	return nil
}

// SendFailure logs the session failure.
func (n *LogNotifier) SendFailure(ctx context.Context, sessionErr error) error {
	n.logger.Error("scan session failed", "error", sessionErr)
	return nil
}
