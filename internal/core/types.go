package core

import (
	"context"
	"strings"
)

// SegmentType определяет вид фрагмента ответа.
type SegmentType string

const (
	SegmentText  SegmentType = "text"
	SegmentImage SegmentType = "image"
)

// Segment — один фрагмент ответа в чат: текст или ссылка на изображение.
type Segment struct {
	Type SegmentType `json:"type"`
	Text string      `json:"text,omitempty"`
	URL  string      `json:"url,omitempty"`
}

// Reply описывает унифицированный ответ на команду.
type Reply struct {
	Segments []Segment `json:"segments"`
}

// PlainReply строит ответ из одного текстового фрагмента.
func PlainReply(text string) Reply {
	return Reply{Segments: []Segment{{Type: SegmentText, Text: text}}}
}

// Text склеивает все текстовые фрагменты ответа.
func (r Reply) Text() string {
	var b strings.Builder
	for _, seg := range r.Segments {
		if seg.Type == SegmentText {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// Images возвращает URL всех изображений ответа.
func (r Reply) Images() []string {
	var urls []string
	for _, seg := range r.Segments {
		if seg.Type == SegmentImage && seg.URL != "" {
			urls = append(urls, seg.URL)
		}
	}
	return urls
}

// CommandProvider определяет контракт для модулей.
type CommandProvider interface {
	Name() string
	Commands() []string
	Init(ctx context.Context) error
	Execute(ctx context.Context, cmd string, text string) (Reply, error)
}
