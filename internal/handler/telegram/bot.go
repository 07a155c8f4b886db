package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"maildns/internal/domain"
	"maildns/internal/usecase"
	"maildns/pkg/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// requestTimeout bounds one evaluation or fix started from chat
const requestTimeout = 2 * time.Minute

// Bot implements handler.Handler for Telegram with button-based UI
type Bot struct {
	usecase      usecase.DeliverabilityUsecase
	settings     storage.SettingsStorage
	bot          *tgbotapi.BotAPI
	token        string
	isAllowed    func(userID int64) bool
	stateManager *StateManager
}

// NewBot creates a new Telegram bot handler. isAllowed decides who may talk to it.
func NewBot(uc usecase.DeliverabilityUsecase, settings storage.SettingsStorage, token string, isAllowed func(userID int64) bool) *Bot {
	return &Bot{
		usecase:      uc,
		settings:     settings,
		token:        token,
		isAllowed:    isAllowed,
		stateManager: NewStateManager(),
	}
}

// Start starts the bot
func (b *Bot) Start() error {
	bot, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = bot
	log.Printf("Authorized on account %s", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message != nil {
			if !b.isAuthorized(update.Message.From.ID) {
				b.sendMessage(update.Message.Chat.ID, "⛔ You are not authorized to use this bot.")
				continue
			}
			go func(msg *tgbotapi.Message) {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("[Panic] handleMessage: %v", r)
					}
				}()
				b.handleMessage(msg)
			}(update.Message)
		} else if update.CallbackQuery != nil {
			if !b.isAuthorized(update.CallbackQuery.From.ID) {
				b.answerCallback(update.CallbackQuery.ID, "⛔ Not authorized")
				continue
			}
			go func(cb *tgbotapi.CallbackQuery) {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("[Panic] handleCallback: %v", r)
					}
				}()
				b.handleCallback(cb)
			}(update.CallbackQuery)
		}
	}

	return nil
}

// Stop stops the bot
func (b *Bot) Stop() error {
	if b.bot != nil {
		b.bot.StopReceivingUpdates()
	}
	return nil
}

// isAuthorized checks if a user is authorized
func (b *Bot) isAuthorized(userID int64) bool {
	if b.isAllowed == nil {
		return true
	}
	return b.isAllowed(userID)
}

// sendMessage sends a message to a chat
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.bot.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

// sendMessageWithKeyboard sends a message with inline keyboard
func (b *Bot) sendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = keyboard
	if _, err := b.bot.Send(msg); err != nil {
		log.Printf("Failed to send message with keyboard: %v", err)
	}
}

// editMessage edits a message
func (b *Bot) editMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	if keyboard != nil {
		edit.ReplyMarkup = keyboard
	}
	if _, err := b.bot.Send(edit); err != nil {
		log.Printf("[editMessage] Failed to edit message: %v", err)
	}
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.bot.Send(callback); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
}

// handleMessage handles incoming text messages
func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.stateManager.ClearState(userID)
		b.handleCommand(chatID, userID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	// Handle state-based input
	text := strings.TrimSpace(msg.Text)
	switch b.stateManager.GetCurrentStep(userID) {
	case StepInputDomainForCheck:
		b.stateManager.ClearState(userID)
		b.runCheck(chatID, text)
	case StepInputDomainForPlan:
		b.stateManager.ClearState(userID)
		b.runPlan(chatID, text)
	case StepInputDomainForFix:
		b.stateManager.ClearState(userID)
		b.proposeFix(chatID, userID, text)
	case StepInputRUA:
		b.stateManager.ClearState(userID)
		b.setReportAddress(chatID, text)
	case StepInputMXTarget:
		b.stateManager.ClearState(userID)
		b.setMXTarget(chatID, text)
	case StepInputSPFInclude:
		b.stateManager.ClearState(userID)
		b.setSPFInclude(chatID, text)
	default:
		b.showMainMenu(chatID)
	}
}

// handleCommand handles slash commands; args may be empty
func (b *Bot) handleCommand(chatID, userID int64, command, args string) {
	switch command {
	case "start", "help":
		b.showMainMenu(chatID)
	case "check":
		if args == "" {
			b.promptDomain(chatID, userID, StepInputDomainForCheck, "🔎 Check")
			return
		}
		b.runCheck(chatID, args)
	case "plan":
		if args == "" {
			b.promptDomain(chatID, userID, StepInputDomainForPlan, "🛠 Plan")
			return
		}
		b.runPlan(chatID, args)
	case "fix":
		if args == "" {
			b.promptDomain(chatID, userID, StepInputDomainForFix, "🩹 Fix")
			return
		}
		b.proposeFix(chatID, userID, args)
	case "settings":
		b.showSettings(chatID)
	case "setrua":
		if args == "" {
			b.promptSetting(chatID, userID, StepInputRUA, "Enter the DMARC aggregate report address (e.g. `dmarc@example.com`):")
			return
		}
		b.setReportAddress(chatID, args)
	case "setmx":
		if args == "" {
			b.promptSetting(chatID, userID, StepInputMXTarget, "Enter the mail host and optional priority (e.g. `mx.example.net 10`):")
			return
		}
		b.setMXTarget(chatID, args)
	case "setinclude":
		if args == "" {
			b.promptSetting(chatID, userID, StepInputSPFInclude, "Enter the SPF include domain (e.g. `_spf.example.net`):")
			return
		}
		b.setSPFInclude(chatID, args)
	default:
		b.sendMessage(chatID, "❓ Unknown command. Use /help.")
	}
}

// handleCallback handles inline keyboard callbacks
func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	data := callback.Data
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID
	messageID := callback.Message.MessageID

	log.Printf("[Callback] UserID: %d, Data: %s", userID, data)

	// Answer callback to remove loading state
	b.answerCallback(callback.ID, "")

	action, arg, _ := strings.Cut(data, ":")
	switch action {
	case "menu":
		b.stateManager.ClearState(userID)
		b.showMainMenu(chatID)
	case "check":
		if arg != "" {
			b.runCheck(chatID, arg)
			return
		}
		b.promptDomain(chatID, userID, StepInputDomainForCheck, "🔎 Check")
	case "plan":
		b.promptDomain(chatID, userID, StepInputDomainForPlan, "🛠 Plan")
	case "fix":
		if arg != "" {
			b.proposeFix(chatID, userID, arg)
			return
		}
		b.promptDomain(chatID, userID, StepInputDomainForFix, "🩹 Fix")
	case "confirm_fix":
		b.handleConfirmFix(chatID, userID, messageID)
	case "cancel_fix":
		b.stateManager.ClearState(userID)
		b.editMessage(chatID, messageID, "❎ Fix cancelled.", nil)
	case "settings":
		b.showSettings(chatID)
	case "set":
		switch arg {
		case "rua":
			b.promptSetting(chatID, userID, StepInputRUA, "Enter the DMARC aggregate report address (e.g. `dmarc@example.com`):")
		case "mx":
			b.promptSetting(chatID, userID, StepInputMXTarget, "Enter the mail host and optional priority (e.g. `mx.example.net 10`):")
		case "include":
			b.promptSetting(chatID, userID, StepInputSPFInclude, "Enter the SPF include domain (e.g. `_spf.example.net`):")
		}
	case "noop":
		// Do nothing, just a placeholder button
	}
}

// showMainMenu shows the main menu
func (b *Bot) showMainMenu(chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔎 Check Domain", "check"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛠 Plan Fixes", "plan"),
			tgbotapi.NewInlineKeyboardButtonData("🩹 Fix Domain", "fix"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", "settings"),
		),
	)

	b.sendMessageWithKeyboard(chatID, "*🏠 Main Menu*\n\nCheck SPF, DKIM, DMARC and MX for a domain and fix what is missing.\n\n"+
		"Commands: /check, /plan, /fix, /settings, /setrua, /setmx, /setinclude", keyboard)
}

func (b *Bot) promptDomain(chatID, userID int64, step Step, title string) {
	b.stateManager.SetStep(userID, step)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "menu"),
		),
	)
	b.sendMessageWithKeyboard(chatID, fmt.Sprintf("*%s*\n\nEnter the domain (e.g. `example.com`):", title), keyboard)
}

func (b *Bot) promptSetting(chatID, userID int64, step Step, prompt string) {
	b.stateManager.SetStep(userID, step)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "menu"),
		),
	)
	b.sendMessageWithKeyboard(chatID, "*⚙️ Settings*\n\n"+prompt+"\nSend `-` to clear it.", keyboard)
}

// runCheck evaluates a domain, web records included when targets are stored
func (b *Bot) runCheck(chatID int64, domainName string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req := usecase.Request{Domain: domainName, Apply: b.checkFlags()}
	report, err := b.usecase.EvaluateDNS(ctx, req)
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Re-check", callbackData("check", report.Snapshot.Domain)),
			tgbotapi.NewInlineKeyboardButtonData("🩹 Fix", callbackData("fix", report.Snapshot.Domain)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back to Menu", "menu"),
		),
	)
	b.sendMessageWithKeyboard(chatID, formatReport(report), keyboard)
}

func (b *Bot) runPlan(chatID int64, domainName string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	out, err := b.usecase.PlanFixes(ctx, usecase.Request{Domain: domainName, Apply: domain.DefaultFixApplyFlags()})
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMessage(chatID, formatPlan(out.Domain, out.Plan))
}

// proposeFix shows the plan and asks for confirmation before touching DNS
func (b *Bot) proposeFix(chatID, userID int64, domainName string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	out, err := b.usecase.PlanFixes(ctx, usecase.Request{Domain: domainName, Apply: domain.DefaultFixApplyFlags()})
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	if len(out.Plan.Operations) == 0 {
		b.sendMessage(chatID, formatPlan(out.Domain, out.Plan))
		return
	}

	b.stateManager.SetData(userID, keyFixDomain, out.Domain)
	b.stateManager.SetStep(userID, StepConfirmFix)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Apply", "confirm_fix"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel_fix"),
		),
	)
	b.sendMessageWithKeyboard(chatID, formatPlan(out.Domain, out.Plan)+"\nApply these changes?", keyboard)
}

func (b *Bot) handleConfirmFix(chatID, userID int64, messageID int) {
	domainName, ok := b.stateManager.TakePendingFix(userID)
	if !ok {
		b.editMessage(chatID, messageID, "⌛ This fix is no longer pending. Run /fix again.", nil)
		return
	}

	b.editMessage(chatID, messageID, fmt.Sprintf("⏳ Applying fixes to %s...", code(domainName)), nil)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	out, err := b.usecase.Fix(ctx, usecase.Request{Domain: domainName, Apply: domain.DefaultFixApplyFlags()})
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMessage(chatID, formatFixOutput(out))
}

func (b *Bot) showSettings(chatID int64) {
	settings, err := b.settings.GetSettings()
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📬 DMARC rua", "set:rua"),
			tgbotapi.NewInlineKeyboardButtonData("📮 MX target", "set:mx"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✉️ SPF include", "set:include"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back to Menu", "menu"),
		),
	)
	b.sendMessageWithKeyboard(chatID, formatSettings(settings), keyboard)
}

func (b *Bot) setReportAddress(chatID int64, input string) {
	if isClear(input) {
		b.updateSettings(chatID, func(s *storage.Settings) { s.DMARCReportAddress = "" })
		return
	}
	address, err := parseReportAddress(input)
	if err != nil {
		b.sendMessage(chatID, "❌ "+escape(err.Error()))
		return
	}
	b.updateSettings(chatID, func(s *storage.Settings) { s.DMARCReportAddress = address })
}

func (b *Bot) setMXTarget(chatID int64, input string) {
	if isClear(input) {
		b.updateSettings(chatID, func(s *storage.Settings) { s.MXTarget = "" })
		return
	}
	host, priority, err := parseMXTarget(input)
	if err != nil {
		b.sendMessage(chatID, "❌ "+escape(err.Error()))
		return
	}
	b.updateSettings(chatID, func(s *storage.Settings) {
		s.MXTarget = host
		if priority != 0 {
			s.MXPriority = priority
		}
	})
}

func (b *Bot) setSPFInclude(chatID int64, input string) {
	if isClear(input) {
		b.updateSettings(chatID, func(s *storage.Settings) { s.SPFInclude = "" })
		return
	}
	include, err := parseSPFInclude(input)
	if err != nil {
		b.sendMessage(chatID, "❌ "+escape(err.Error()))
		return
	}
	b.updateSettings(chatID, func(s *storage.Settings) { s.SPFInclude = include })
}

func (b *Bot) updateSettings(chatID int64, update func(s *storage.Settings)) {
	settings, err := b.settings.UpdateSettings(update)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMessage(chatID, "✅ Saved.\n\n"+formatSettings(settings))
}

// checkFlags evaluates web records only when a target is stored for them
func (b *Bot) checkFlags() domain.FixApplyFlags {
	var flags domain.FixApplyFlags
	if settings, err := b.settings.GetSettings(); err == nil {
		flags.ApexA = settings.ApexTarget != ""
		flags.WWWCNAME = settings.WWWTarget != ""
	}
	return flags
}

// callbackData joins action and arg, dropping arg past Telegram's 64 byte limit
func callbackData(action, arg string) string {
	data := action + ":" + arg
	if len(data) > 64 {
		return action
	}
	return data
}

func (b *Bot) sendError(chatID int64, err error) {
	log.Printf("[Bot] ERROR: %v", err)
	b.sendMessage(chatID, userMessage(err))
}

// userMessage turns an error into a chat reply
func userMessage(err error) string {
	var invalid *domain.InvalidDomainError
	switch {
	case errors.As(err, &invalid):
		return "❌ " + escape(invalid.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		return "⚙️ No DNS provider is configured. Set CLOUDFLARE\\_API\\_TOKEN to apply fixes."
	case errors.Is(err, domain.ErrProviderAuth):
		return "🔑 The DNS provider rejected the configured credentials."
	}
	return "❌ Error: " + escape(err.Error())
}

// isClear reports whether a settings reply asks to unset the value
func isClear(input string) bool {
	input = strings.TrimSpace(input)
	return input == "-" || strings.EqualFold(input, "none")
}

func parseReportAddress(input string) (string, error) {
	address := strings.TrimPrefix(strings.TrimSpace(input), "mailto:")
	local, host, ok := strings.Cut(address, "@")
	if !ok || local == "" || strings.ContainsAny(address, " ,;") {
		return "", fmt.Errorf("invalid report address %q", input)
	}
	if _, err := domain.NormalizeDomain(host); err != nil {
		return "", err
	}
	return address, nil
}

func parseMXTarget(input string) (string, uint16, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 || len(fields) > 2 {
		return "", 0, fmt.Errorf("expected a host and an optional priority")
	}
	host, err := domain.NormalizeDomain(fields[0])
	if err != nil {
		return "", 0, err
	}
	if len(fields) == 1 {
		return host, 0, nil
	}
	priority, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid priority %q", fields[1])
	}
	return host, uint16(priority), nil
}

// parseSPFInclude accepts underscore labels such as _spf.example.net
func parseSPFInclude(input string) (string, error) {
	include := strings.TrimPrefix(strings.TrimSpace(input), "include:")
	if _, err := domain.NormalizeDomain(strings.ReplaceAll(include, "_", "x")); err != nil {
		return "", fmt.Errorf("invalid SPF include %q", input)
	}
	return strings.ToLower(strings.TrimSuffix(include, ".")), nil
}
