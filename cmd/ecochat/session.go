package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/green-earth/internal/features/assistant"
)

const banner = "🌱 Эко-ассистент. /clear — очистить историю, /quit — выход."

// session: один запуск диалога в терминале.
type session struct {
	chat    assistant.Streamer
	history *assistant.HistoryCache
	in      io.Reader
	out     io.Writer

	messages []assistant.ChatMessage
}

func (s *session) run(ctx context.Context) error {
	s.messages = s.history.Load()
	fmt.Fprintln(s.out, banner)
	for _, m := range s.messages {
		s.print(m)
	}

	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			s.messages = nil
			if err := s.history.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(s.out, "История очищена")
			continue
		}

		if err := s.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(s.out, "\n⚠️ "+assistant.DisplayMessage(err))
		}
	}
}

// ask отправляет вопрос и печатает ответ по мере поступления.
// При ошибке вопрос в историю не попадает.
func (s *session) ask(ctx context.Context, question string) error {
	msgs := append(s.messages, assistant.ChatMessage{Role: assistant.RoleUser, Content: question})

	fmt.Fprint(s.out, "🤖 ")
	answer, err := s.chat.Stream(ctx, assistant.Recent(msgs, assistant.MaxChatMessages), func(delta string) error {
		_, err := io.WriteString(s.out, delta)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out)

	s.messages = assistant.Recent(append(msgs, assistant.ChatMessage{Role: assistant.RoleAssistant, Content: answer}), assistant.MaxChatMessages)
	if err := s.history.Save(s.messages); err != nil {
		log.WithError(err).Warn("Не удалось сохранить историю")
	}
	return nil
}

func (s *session) print(m assistant.ChatMessage) {
	prefix := "> "
	if m.Role == assistant.RoleAssistant {
		prefix = "🤖 "
	}
	fmt.Fprintln(s.out, prefix+m.Content)
}
