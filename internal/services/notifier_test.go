package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripledger/tripledger/internal/services"
)

const telegramToken = "123456:AAbbCCddEEff"

func TestLogNotifier_Send(t *testing.T) {
	n := services.NewLogNotifier(newTestLogger())
	assert.NoError(t, n.Send(context.Background(), "123456"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Send(ctx, "123456"), context.Canceled)
}

func TestTelegramNotifier_Send(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	n := services.NewTelegramNotifier(server.Client(), server.URL+"/", telegramToken, "42", 5*time.Minute, newTestLogger())
	require.NoError(t, n.Send(context.Background(), "012345"))

	assert.Equal(t, "/bot"+telegramToken+"/sendMessage", gotPath)
	assert.Equal(t, "42", gotBody["chat_id"])
	assert.Contains(t, gotBody["text"], "012345")
	assert.Contains(t, gotBody["text"], "5m0s")
}

func TestTelegramNotifier_RejectedByAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	n := services.NewTelegramNotifier(server.Client(), server.URL, telegramToken, "42", 5*time.Minute, newTestLogger())
	err := n.Send(context.Background(), "012345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestTelegramNotifier_OkFalseWith200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer server.Close()

	n := services.NewTelegramNotifier(server.Client(), server.URL, telegramToken, "42", 5*time.Minute, newTestLogger())
	assert.Error(t, n.Send(context.Background(), "012345"))
}

func TestTelegramNotifier_TransportErrorRedactsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	n := services.NewTelegramNotifier(nil, url, telegramToken, "42", 5*time.Minute, newTestLogger())
	err := n.Send(context.Background(), "012345")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), telegramToken)
}

func TestTelegramNotifier_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	n := services.NewTelegramNotifier(server.Client(), server.URL, telegramToken, "42", 5*time.Minute, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := n.Send(ctx, "012345")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeSESClient struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESNotifier_Send(t *testing.T) {
	client := &fakeSESClient{}
	n := services.NewSESNotifier(client, "noreply@example.com", allowedEmail, 5*time.Minute, newTestLogger())

	require.NoError(t, n.Send(context.Background(), "987654"))
	require.NotNil(t, client.input)

	assert.Equal(t, "noreply@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{allowedEmail}, client.input.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(client.input.Message.Body.Text.Data), "987654")
	assert.True(t, strings.Contains(aws.ToString(client.input.Message.Body.Html.Data), "987654"))
}

func TestSESNotifier_SendError(t *testing.T) {
	sendErr := errors.New("throttled")
	client := &fakeSESClient{err: sendErr}
	n := services.NewSESNotifier(client, "noreply@example.com", allowedEmail, 5*time.Minute, newTestLogger())

	assert.ErrorIs(t, n.Send(context.Background(), "987654"), sendErr)
}
