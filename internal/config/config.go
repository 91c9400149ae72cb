package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramBotToken  string
	CaptchaListenAddr string
	DataDir           string
	LogPath           string
	AllowedUserIDs    []int64
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	dataDir := strings.TrimSpace(os.Getenv("DATA_DIR"))
	if dataDir == "" {
		dataDir = "data"
	}

	listenAddr := strings.TrimSpace(os.Getenv("CAPTCHA_LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = ":5123"
	}

	logPath := strings.TrimSpace(os.Getenv("LOG_PATH"))
	if logPath == "" {
		logPath = "logs/app.log"
	}

	return Config{
		TelegramBotToken:  strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		CaptchaListenAddr: listenAddr,
		DataDir:           dataDir,
		LogPath:           logPath,
		AllowedUserIDs:    parseUserIDs(os.Getenv("ALLOWED_USER_IDS")),
	}
}

func parseUserIDs(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("Ignoring invalid entry %q in ALLOWED_USER_IDS", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.TelegramBotToken) == "" {
		return errors.New("telegram bot token required (provide TELEGRAM_BOT_TOKEN)")
	}
	if strings.TrimSpace(c.CaptchaListenAddr) == "" {
		return errors.New("captcha listen address must not be empty")
	}
	return nil
}

// UserAllowed reports whether the given Telegram user may trigger QR
// confirmations. An empty allow-list admits everyone.
func (c Config) UserAllowed(id int64) bool {
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	for _, allowed := range c.AllowedUserIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

func (c Config) AccountFilePath() string {
	return filepath.Join(c.DataDir, "mihoyo_account.json")
}

func (c Config) ScanLogPath() string {
	return filepath.Join(c.DataDir, "scanlog.db")
}

// CaptchaURL is the address the operator opens in a browser to solve the
// challenge. A bare ":port" listen address is advertised as localhost.
func (c Config) CaptchaURL() string {
	addr := c.CaptchaListenAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return fmt.Sprintf("http://%s", addr)
}
