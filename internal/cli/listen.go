package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mangahub/internal/protocols/tcp"
	"mangahub/internal/protocols/udp"
	"mangahub/pkg/models"
)

func newListenCommand() *cobra.Command {
	listen := &cobra.Command{
		Use:   "listen",
		Short: "Stream live platform events to the terminal",
	}
	listen.AddCommand(newListenProgressCommand(), newListenNotificationsCommand())
	return listen
}

// newListenProgressCommand subscribes to the TCP progress bus directly.
func newListenProgressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Follow everyone's reading progress live",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := LoadSession()
			if err != nil {
				return err
			}
			if sess.UserID == "" {
				return errors.New("not signed in; run `mangahub auth login`")
			}

			addr := viper.GetString("tcp_addr")
			conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
			if err != nil {
				return fmt.Errorf("connect to progress bus %s: %w", addr, err)
			}
			defer conn.Close()

			frame, _ := json.Marshal(tcp.SubscribeFrame{Type: "subscribe", UserID: sess.UserID})
			if _, err := conn.Write(append(frame, '\n')); err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			fmt.Printf("Listening for progress events on %s (Ctrl-C to stop)...\n", addr)

			go heartbeatTCP(conn)
			go func() {
				waitForInterrupt()
				conn.SetWriteDeadline(time.Now().Add(time.Second))
				fmt.Fprintf(conn, "%s\n", tcp.ControlDisconnect)
				conn.Close()
			}()

			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "", tcp.ControlPong:
				case tcp.ControlPing:
					fmt.Fprintf(conn, "%s\n", tcp.ControlPong)
				default:
					var event models.ProgressEvent
					if err := json.Unmarshal([]byte(line), &event); err != nil {
						continue
					}
					ts := time.Unix(event.Timestamp, 0).Format("15:04:05")
					fmt.Printf("[%s] %s is reading %s, chapter %d\n",
						ts, event.Username, event.MangaTitle, event.Chapter)
				}
			}
			return nil
		},
	}
}

// newListenNotificationsCommand registers on the UDP notification bus.
func newListenNotificationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "Follow platform notifications live",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := viper.GetString("udp_addr")
			udpAddr, err := net.ResolveUDPAddr("udp", addr)
			if err != nil {
				return fmt.Errorf("resolve notification bus %s: %w", addr, err)
			}
			conn, err := net.DialUDP("udp", nil, udpAddr)
			if err != nil {
				return fmt.Errorf("connect to notification bus %s: %w", addr, err)
			}
			defer conn.Close()

			if _, err := conn.Write([]byte(udp.ControlRegister)); err != nil {
				return fmt.Errorf("register: %w", err)
			}
			fmt.Printf("Listening for notifications on %s (Ctrl-C to stop)...\n", addr)

			go heartbeatUDP(conn)
			go func() {
				waitForInterrupt()
				conn.Close()
			}()

			buf := make([]byte, 2048)
			for {
				n, err := conn.Read(buf)
				if err != nil {
					return nil
				}
				msg := strings.TrimSpace(string(buf[:n]))
				switch msg {
				case udp.ControlRegistered, udp.ControlPong:
				case udp.ControlPing:
					conn.Write([]byte(udp.ControlPong))
				default:
					var notification models.Notification
					if err := json.Unmarshal([]byte(msg), &notification); err != nil {
						continue
					}
					ts := time.Unix(notification.Timestamp, 0).Format("15:04:05")
					fmt.Printf("[%s] (%s) %s\n", ts, notification.Type, notification.Message)
				}
			}
		},
	}
}

func heartbeatTCP(conn net.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := fmt.Fprintf(conn, "%s\n", tcp.ControlPing); err != nil {
			return
		}
	}
}

func heartbeatUDP(conn *net.UDPConn) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := conn.Write([]byte(udp.ControlPong)); err != nil {
			return
		}
	}
}

func waitForInterrupt() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
