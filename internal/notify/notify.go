// Package notify sends push notifications to the owner's devices.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sender delivers a notification. Delivery is fire-and-forget.
type Sender interface {
	Notify(title, body string)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(string, string) {}

// Message is the FCM legacy HTTP payload.
type Message struct {
	To           string  `json:"to"`
	Priority     string  `json:"priority"`
	Notification Payload `json:"notification"`
}

type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// FCM posts to a Firebase topic named after the owning user. Each send
// runs on its own goroutine bounded by Timeout.
type FCM struct {
	Endpoint string
	Key      string
	Timeout  time.Duration
	// User returns the user id the topic is derived from.
	User   func() string
	Client *http.Client

	log zerolog.Logger
	wg  sync.WaitGroup
}

func NewFCM(endpoint, key string, timeout time.Duration, user func() string, log zerolog.Logger) *FCM {
	return &FCM{
		Endpoint: endpoint,
		Key:      key,
		Timeout:  timeout,
		User:     user,
		Client:   &http.Client{},
		log:      log,
	}
}

// Topic is the FCM topic of a user's devices.
func Topic(userID string) string {
	return "/topics/" + userID + "/all"
}

func (f *FCM) Notify(title, body string) {
	user := ""
	if f.User != nil {
		user = f.User()
	}
	if user == "" {
		f.log.Debug().Str("title", title).Msg("no user, notification dropped")
		return
	}
	msg := Message{
		To:           Topic(user),
		Priority:     "high",
		Notification: Payload{Title: title, Body: body},
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if err := f.send(msg); err != nil {
			f.log.Error().Err(err).Str("title", title).Msg("notification failed")
			return
		}
		f.log.Debug().Str("title", title).Msg("notification sent")
	}()
}

func (f *FCM) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+f.Key)

	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until every in-flight send has finished.
func (f *FCM) Wait() { f.wg.Wait() }
