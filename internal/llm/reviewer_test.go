package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"btc-predictor/internal/model"
)

func TestChatReviewerParsesReply(t *testing.T) {
	srv := chatServer(t, `{"agrees":false,"confidence_correct":30,"reasoning":"overextended","concerns":["volume is thin"],"meta_rule_violations":["high-confidence UP after a spike"],"veto":true}`)
	defer srv.Close()

	rev := NewChatReviewer(newTestClient(srv.URL), zerolog.Nop())
	assessment, err := rev.Review(context.Background(), model.Forecast{}, model.Briefing{})
	if err != nil {
		t.Fatalf("valid reply should parse: %v", err)
	}

	if assessment.Agreement != model.Disagree {
		t.Fatalf("agreement = %s, want DISAGREE", assessment.Agreement)
	}
	if !assessment.Veto {
		t.Fatal("veto flag should carry through")
	}
	if len(assessment.Concerns) != 2 {
		t.Fatalf("concerns = %d, want 2 (one folded rule violation)", len(assessment.Concerns))
	}
	if !strings.HasPrefix(assessment.Concerns[1], "meta-rule violation:") {
		t.Fatalf("rule violations must be folded into concerns, got %q", assessment.Concerns[1])
	}
}

func TestChatReviewerRejectsProseReply(t *testing.T) {
	srv := chatServer(t, "Looks fine to me.")
	defer srv.Close()

	rev := NewChatReviewer(newTestClient(srv.URL), zerolog.Nop())
	if _, err := rev.Review(context.Background(), model.Forecast{}, model.Briefing{}); !errors.Is(err, model.ErrMalformedReview) {
		t.Fatalf("prose reply must be ErrMalformedReview, got %v", err)
	}
}

func TestChatReviewerTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rev := NewChatReviewer(newTestClient(srv.URL), zerolog.Nop())
	if _, err := rev.Review(context.Background(), model.Forecast{}, model.Briefing{}); !errors.Is(err, model.ErrReviewerUnavailable) {
		t.Fatalf("API failure must be ErrReviewerUnavailable, got %v", err)
	}
}
