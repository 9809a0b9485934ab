package mailer_test

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
)

// fakeSMTP is a minimal scripted SMTP server for exercising the full
// client-side transaction without a real mail host.
type fakeSMTP struct {
	ln net.Listener

	mu        sync.Mutex
	authReply string // default "235 2.7.0 Authentication successful"
	rcptReply string // default "250 OK"
	messages  []string
}

func (s *fakeSMTP) setAuthReply(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authReply = reply
}

func (s *fakeSMTP) setRcptReply(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rcptReply = reply
}

func (s *fakeSMTP) reply(which string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if which == "auth" {
		return s.authReply
	}
	return s.rcptReply
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &fakeSMTP{
		ln:        ln,
		authReply: "235 2.7.0 Authentication successful",
		rcptReply: "250 OK",
	}

	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })

	return s
}

func (s *fakeSMTP) hostPort() (string, int) {
	addr := s.ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func (s *fakeSMTP) lastMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

func (s *fakeSMTP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeSMTP) handle(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	write := func(line string) {
		_, _ = conn.Write([]byte(line + "\r\n"))
	}

	write("220 fake.test ESMTP ready")

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			write("250-fake.test")
			write("250 AUTH PLAIN LOGIN")
		case strings.HasPrefix(cmd, "AUTH"):
			write(s.reply("auth"))
		case strings.HasPrefix(cmd, "MAIL"):
			write("250 OK")
		case strings.HasPrefix(cmd, "RCPT"):
			write(s.reply("rcpt"))
		case strings.HasPrefix(cmd, "DATA"):
			write("354 End data with <CR><LF>.<CR><LF>")
			var data strings.Builder
			for {
				dataLine, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				if strings.TrimRight(dataLine, "\r\n") == "." {
					break
				}
				data.WriteString(dataLine)
			}
			s.mu.Lock()
			s.messages = append(s.messages, data.String())
			s.mu.Unlock()
			write("250 OK queued")
		case strings.HasPrefix(cmd, "QUIT"):
			write("221 bye")
			return
		default:
			write("250 OK")
		}
	}
}
