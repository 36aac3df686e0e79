package service

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/nemesis/api/internal/model"
)

func notifyFixture() (*model.User, *model.User, *model.MatchRecord) {
	user := &model.User{ID: "user:a", Username: "alice", Email: "alice@example.com"}
	enemy := &model.User{ID: "user:b", Username: "<bob>", Email: "bob@example.com"}
	record := &model.MatchRecord{ID: "match:1", UserID: user.ID, EnemyID: enemy.ID, Score: 87, CycleID: "cycle-1"}
	return user, enemy, record
}

func TestBuildMatchEmail(t *testing.T) {
	t.Parallel()

	user, enemy, record := notifyFixture()

	msg, err := buildMatchEmail("nemesis@example.com", user, enemy, record)
	require.NoError(t, err)

	body := string(msg)
	assert.Contains(t, body, "From: nemesis@example.com\r\n")
	assert.Contains(t, body, "To: alice@example.com\r\n")
	assert.Contains(t, body, "Subject: You Have a New Enemy Match!")
	assert.Contains(t, body, "multipart/alternative; boundary=")
	assert.Contains(t, body, "Incompatibility Score: 87/100")
	assert.Contains(t, body, "Your monthly enemy match")
	// Plain text is not escaped, HTML is.
	assert.Contains(t, body, "Your new enemy is: <bob>")
	assert.Contains(t, body, "&lt;bob&gt;")
}

func TestBuildMatchEmail_AdHoc(t *testing.T) {
	t.Parallel()

	user, enemy, record := notifyFixture()
	record.CycleID = model.AdHocCycleID

	msg, err := buildMatchEmail("nemesis@example.com", user, enemy, record)
	require.NoError(t, err)
	assert.Contains(t, string(msg), "You asked for a new enemy")
}

func TestSMTPNotifier_Sends(t *testing.T) {
	t.Parallel()

	n := NewSMTPNotifier(SMTPNotifierConfig{Host: "smtp.example.com", Port: 587, Username: "bot@example.com", Password: "pw"})

	var gotAddr, gotFrom string
	var gotTo []string
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo = addr, from, to
		assert.True(t, strings.Contains(string(msg), "alice"))
		return nil
	}

	user, enemy, record := notifyFixture()
	require.NoError(t, n.MatchCreated(context.Background(), user, enemy, record))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
}

func TestSMTPNotifier_SendFailure(t *testing.T) {
	t.Parallel()

	n := NewSMTPNotifier(SMTPNotifierConfig{Host: "smtp.example.com", Port: 25})
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("550 mailbox unavailable")
	}

	user, enemy, record := notifyFixture()
	err := n.MatchCreated(context.Background(), user, enemy, record)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550")
}

func TestSMTPNotifier_Timeout(t *testing.T) {
	t.Parallel()

	n := NewSMTPNotifier(SMTPNotifierConfig{Host: "smtp.example.com", Port: 25, Timeout: 10 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	user, enemy, record := notifyFixture()
	err := n.MatchCreated(context.Background(), user, enemy, record)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestNopAndLogNotifiers(t *testing.T) {
	t.Parallel()

	user, enemy, record := notifyFixture()
	assert.NoError(t, NopNotifier{}.MatchCreated(context.Background(), user, enemy, record))
	assert.NoError(t, LogNotifier{}.MatchCreated(context.Background(), user, enemy, record))
}
