package ui

import (
	"strings"

	qrcodeTerminal "github.com/Baozisoftware/qrcode-terminal-go"
	"github.com/pterm/pterm"
)

// Console is the operator-facing terminal interface: first-run credential
// prompts, captcha hand-off, and status lines.
type Console struct{}

func NewConsole() *Console { return &Console{} }

func (c *Console) PromptAccount() (string, error) {
	account, err := pterm.DefaultInteractiveTextInput.
		WithTextStyle(pterm.NewStyle(pterm.FgDefault)).
		Show("miHoYo account")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(account), nil
}

func (c *Console) PromptPassword() (string, error) {
	password, err := pterm.DefaultInteractiveTextInput.
		WithMask("*").
		Show("Password")
	if err != nil {
		return "", err
	}
	return password, nil
}

// ShowCaptchaPrompt tells the operator where to solve the challenge and
// renders the URL as a terminal QR code so it can be opened from a phone
// on the same network.
func (c *Console) ShowCaptchaPrompt(url string) {
	pterm.Info.Printfln("Open %s to complete the verification", url)
	qrcodeTerminal.New().Get(url).Print()
}

func (c *Console) Info(msg string)    { pterm.Info.Println(msg) }
func (c *Console) Success(msg string) { pterm.Success.Println(msg) }
func (c *Console) Error(msg string)   { pterm.Error.Println(msg) }
