package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	files   []string
	buffers [][]byte
	exts    []string
	err     error
}

func (p *fakePublisher) PublishFile(path string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.files = append(p.files, path)
	return "http://host/file-url", nil
}

func (p *fakePublisher) PublishBuffer(data []byte, ext string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.buffers = append(p.buffers, data)
	p.exts = append(p.exts, ext)
	return "http://host/buffer-url", nil
}

type sent struct {
	text    string
	fileURL string
}

type fakeSender struct {
	sent []sent
	err  error
}

func (s *fakeSender) Send(_ context.Context, text, fileURL string) error {
	s.sent = append(s.sent, sent{text, fileURL})
	return s.err
}

func TestDispatch_Precedence(t *testing.T) {
	tests := []struct {
		name        string
		msg         Message
		wantSent    sent
		wantFiles   int
		wantBuffers int
	}{
		{
			name:        "buffer wins over file path",
			msg:         Message{Text: "t", FilePath: "/tmp/x.png", Buffer: []byte("b"), BufferExtension: "png"},
			wantSent:    sent{"t", "http://host/buffer-url"},
			wantBuffers: 1,
		},
		{
			name:      "file path wins over preset url",
			msg:       Message{FilePath: "/tmp/x.png", FileURL: "http://elsewhere/y.png"},
			wantSent:  sent{"", "http://host/file-url"},
			wantFiles: 1,
		},
		{
			name:     "preset url is sent as is",
			msg:      Message{Text: "see", FileURL: "http://elsewhere/y.png"},
			wantSent: sent{"see", "http://elsewhere/y.png"},
		},
		{
			name:     "text only",
			msg:      Message{Text: "hi"},
			wantSent: sent{"hi", ""},
		},
		{
			name:        "empty buffer still counts as content",
			msg:         Message{Buffer: []byte{}},
			wantSent:    sent{"", "http://host/buffer-url"},
			wantBuffers: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			snd := &fakeSender{}

			require.NoError(t, Dispatch(context.Background(), tt.msg, pub, snd))

			require.Len(t, snd.sent, 1)
			assert.Equal(t, tt.wantSent, snd.sent[0])
			assert.Len(t, pub.files, tt.wantFiles)
			assert.Len(t, pub.buffers, tt.wantBuffers)
		})
	}
}

func TestDispatch_BufferExtensionPassedThrough(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, Dispatch(context.Background(), Message{Buffer: []byte("x"), BufferExtension: "csv"}, pub, &fakeSender{}))
	assert.Equal(t, []string{"csv"}, pub.exts)
}

func TestDispatch_EmptyMessage(t *testing.T) {
	snd := &fakeSender{}

	err := Dispatch(context.Background(), Message{}, &fakePublisher{}, snd)

	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, snd.sent, "no network call for empty messages")
}

func TestDispatch_PublishErrorIsNotSent(t *testing.T) {
	publishErr := errors.New("source missing")
	snd := &fakeSender{}

	err := Dispatch(context.Background(), Message{FilePath: "/nope"}, &fakePublisher{err: publishErr}, snd)

	assert.ErrorIs(t, err, publishErr)
	assert.Contains(t, err.Error(), "publish file")
	assert.Empty(t, snd.sent)
}

func TestDispatch_SendErrorWrapped(t *testing.T) {
	remote := &RemoteError{Code: 120}
	err := Dispatch(context.Background(), TextMessage("hi"), &fakePublisher{}, &fakeSender{err: remote})

	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, err.Error(), "send:")
}

func TestResolve_SetsFileURL(t *testing.T) {
	msg := Message{Text: "x", Buffer: []byte("b")}
	require.NoError(t, Resolve(&msg, &fakePublisher{}))
	assert.Equal(t, "http://host/buffer-url", msg.FileURL)
}

func TestFileService_SendText(t *testing.T) {
	snd := &fakeSender{}
	svc := NewFileService(&fakePublisher{}, snd)

	require.NoError(t, svc.SendText(context.Background(), "deploy done"))
	assert.Equal(t, []sent{{"deploy done", ""}}, snd.sent)
}

func TestRouter_Send(t *testing.T) {
	pub := &fakePublisher{}
	ops := &fakeSender{}
	dev := &fakeSender{}
	r := NewRouter(pub, Channel{Name: "ops", Sender: ops}, Channel{Name: "dev", Sender: dev})

	require.NoError(t, r.Send(context.Background(), "dev", Message{Text: "hello dev", FilePath: "/tmp/log.txt"}))

	assert.Empty(t, ops.sent)
	assert.Equal(t, []sent{{"hello dev", "http://host/file-url"}}, dev.sent)
	assert.Equal(t, []string{"ops", "dev"}, r.Channels())
}

func TestRouter_UnknownChannel(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRouter(pub, Channel{Name: "ops", Sender: &fakeSender{}})

	err := r.Send(context.Background(), "nope", Message{Buffer: []byte("x")})

	assert.ErrorIs(t, err, ErrUnknownChannel)
	assert.Empty(t, pub.buffers, "nothing is published for unknown channels")
}
