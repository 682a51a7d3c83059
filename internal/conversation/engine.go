package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"viewbot/internal/domain"
	"viewbot/internal/metrics"
	"viewbot/internal/repository"
	"viewbot/internal/service"

	"go.uber.org/zap"
)

// Intent is what an inbound event asks for
type Intent int

const (
	IntentText Intent = iota
	IntentStart
	IntentBalance
	IntentReferral
	IntentHistory
	IntentHelp
	IntentWithdraw
	IntentRedeem
	IntentAdmin
	IntentCancel
)

var intentNames = map[Intent]string{
	IntentText:     "text",
	IntentStart:    "start",
	IntentBalance:  "balance",
	IntentReferral: "referral",
	IntentHistory:  "history",
	IntentHelp:     "help",
	IntentWithdraw: "withdraw",
	IntentRedeem:   "redeem",
	IntentAdmin:    "admin",
	IntentCancel:   "cancel",
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return fmt.Sprintf("intent(%d)", int(i))
}

// Event is one inbound message from a user. Payload carries the /start
// argument, which is the referrer id on first contact.
type Event struct {
	UserID  string
	Intent  Intent
	Text    string
	Payload string
}

// OrderPlacer submits view orders to the fulfillment panel
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, link string, quantity int) domain.OrderResult
}

// Gate decides whether a user may use point features, and what to tell
// them when they may not
type Gate interface {
	IsEligible(userID string) bool
	JoinPrompt() string
}

// JoinPrompter is implemented by messengers that can attach a membership
// re-check button to the join prompt
type JoinPrompter interface {
	SendJoinPrompt(to, text string) error
}

// Deps groups the engine's collaborators
type Deps struct {
	Ledger    *service.LedgerService
	Codes     *service.CodeService
	Bans      *service.BanService
	Settings  *service.SettingsService
	Auth      *service.AuthService
	Orders    OrderPlacer
	Gate      Gate
	Messenger service.Messenger
	States    repository.StateStore
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// BotUsername builds referral links
	BotUsername string
}

// Engine runs the per-user dialog state machine. All events of one user
// are handled one at a time; events of different users run in parallel.
type Engine struct {
	Deps
	locks *service.UserLocks
}

// NewEngine creates a conversation engine
func NewEngine(deps Deps) *Engine {
	return &Engine{Deps: deps, locks: service.NewUserLocks()}
}

// Handle processes one event. User-facing failures are answered inside;
// the returned error is for the transport to log.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	if ev.UserID == "" {
		return errors.New("event without user id")
	}

	unlock := e.locks.Lock(ev.UserID)
	defer unlock()

	e.Logger.Debug("Handling event",
		zap.String("user_id", ev.UserID),
		zap.Stringer("intent", ev.Intent),
	)

	if e.Bans.IsBanned(ev.UserID) {
		e.clearDialog(ctx, ev.UserID)
		return e.reply(ev.UserID, msgBanned)
	}

	switch ev.Intent {
	case IntentStart:
		return e.handleStart(ctx, ev)
	case IntentBalance:
		return e.handleBalance(ev.UserID)
	case IntentReferral:
		return e.handleReferral(ev.UserID)
	case IntentHistory:
		return e.handleHistory(ev.UserID)
	case IntentHelp:
		return e.reply(ev.UserID, msgHelp)
	case IntentWithdraw:
		return e.enterDialog(ctx, ev.UserID, domain.AwaitingWithdrawLink{}, true, msgAskLink)
	case IntentRedeem:
		return e.enterDialog(ctx, ev.UserID, domain.AwaitingRedeemCode{}, true, msgAskCode)
	case IntentAdmin:
		return e.enterDialog(ctx, ev.UserID, domain.AwaitingAdminPassword{}, false, msgAskPassword)
	case IntentCancel:
		e.clearDialog(ctx, ev.UserID)
		return e.reply(ev.UserID, msgCancelled)
	case IntentText:
		return e.handleText(ctx, ev)
	default:
		return fmt.Errorf("unknown intent %v", ev.Intent)
	}
}

func (e *Engine) reply(userID, text string) error {
	return e.Messenger.SendText(userID, text)
}

// internalError logs an operation that could not complete and tells the
// user without details
func (e *Engine) internalError(userID, operation string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		e.Metrics.PersistErrors.WithLabelValues(operation).Inc()
	}
	e.Logger.Error("Operation failed",
		zap.String("operation", operation),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	return e.reply(userID, msgInternalError)
}

func (e *Engine) clearDialog(ctx context.Context, userID string) {
	if err := e.States.Clear(ctx, userID); err != nil {
		e.Logger.Warn("Failed to clear dialog", zap.String("user_id", userID), zap.Error(err))
	}
}

// checkEligible returns ErrNotEligible when userID has not joined every
// required channel
func (e *Engine) checkEligible(userID string) error {
	if !e.Gate.IsEligible(userID) {
		return domain.ErrNotEligible
	}
	return nil
}

// rejectIneligible answers a gated event with the join prompt
func (e *Engine) rejectIneligible(userID string, err error) error {
	e.Logger.Info("Gated event rejected", zap.String("user_id", userID), zap.Error(err))

	prompt := e.Gate.JoinPrompt()
	if jp, ok := e.Messenger.(JoinPrompter); ok {
		return jp.SendJoinPrompt(userID, prompt)
	}
	return e.reply(userID, prompt)
}

// enterDialog starts a dialog, discarding whatever dialog was in progress
func (e *Engine) enterDialog(ctx context.Context, userID string, dialog domain.Dialog, gated bool, prompt string) error {
	if gated {
		if err := e.checkEligible(userID); err != nil {
			return e.rejectIneligible(userID, err)
		}
	}

	if err := e.States.Set(ctx, userID, dialog); err != nil {
		return e.internalError(userID, "dialog", err)
	}
	return e.reply(userID, prompt)
}

func (e *Engine) handleStart(ctx context.Context, ev Event) error {
	if err := e.checkEligible(ev.UserID); err != nil {
		return e.rejectIneligible(ev.UserID, err)
	}

	acc, created, err := e.Ledger.Open(ev.UserID, strings.TrimSpace(ev.Payload))
	if err != nil {
		return e.internalError(ev.UserID, "signup", err)
	}

	if created {
		e.Metrics.Signups.Inc()
		if acc.ReferredBy != nil {
			e.Metrics.Referrals.Inc()
			e.Logger.Info("Referral credited",
				zap.String("user_id", ev.UserID),
				zap.String("referrer_id", *acc.ReferredBy),
			)
		}
	}

	e.clearDialog(ctx, ev.UserID)
	return e.reply(ev.UserID, welcomeText(created))
}

// account reads userID's account without opening one, so a later /start
// can still carry a referral. Unknown users read as an empty account.
func (e *Engine) account(userID string) *domain.Account {
	if acc, ok := e.Ledger.Account(userID); ok {
		return acc
	}
	return &domain.Account{UserID: userID}
}

func (e *Engine) handleBalance(userID string) error {
	return e.reply(userID, balanceText(e.account(userID).Balance))
}

func (e *Engine) handleReferral(userID string) error {
	link := fmt.Sprintf("https://t.me/%s?start=%s", e.BotUsername, userID)
	return e.reply(userID, referralText(link, len(e.account(userID).Referrals)))
}

func (e *Engine) handleHistory(userID string) error {
	return e.reply(userID, historyText(e.account(userID).RecentHistory(historyLimit)))
}

func (e *Engine) handleText(ctx context.Context, ev Event) error {
	dialog, err := e.States.Get(ctx, ev.UserID)
	if err != nil {
		return e.internalError(ev.UserID, "dialog", err)
	}

	text := strings.TrimSpace(ev.Text)

	// unknown commands are never dialog input
	if strings.HasPrefix(text, "/") {
		if dialog == nil {
			return e.reply(ev.UserID, msgUnknownCommand)
		}
		return e.reply(ev.UserID, msgUnknownCommandInDialog)
	}

	switch d := dialog.(type) {
	case domain.AwaitingWithdrawLink:
		if text == "" {
			return e.reply(ev.UserID, msgAskLink)
		}
		if err := e.States.Set(ctx, ev.UserID, domain.AwaitingWithdrawAmount{Link: text}); err != nil {
			return e.internalError(ev.UserID, "dialog", err)
		}
		return e.reply(ev.UserID, msgAskAmount)

	case domain.AwaitingWithdrawAmount:
		e.clearDialog(ctx, ev.UserID)
		return e.withdraw(ctx, ev.UserID, d.Link, text)

	case domain.AwaitingRedeemCode:
		e.clearDialog(ctx, ev.UserID)
		return e.redeem(ev.UserID, text)

	case domain.AwaitingAdminPassword:
		e.clearDialog(ctx, ev.UserID)
		return e.adminLogin(ev.UserID, text)

	default:
		return e.reply(ev.UserID, msgIdle)
	}
}

// withdraw debits only after the panel confirmed the order. The engine's
// per-user lock is held for the whole call, so no other event of this user
// can spend the same points in between.
func (e *Engine) withdraw(ctx context.Context, userID, link, text string) error {
	amount, err := strconv.Atoi(text)
	if err != nil {
		return e.reply(userID, msgInvalidNumber)
	}
	if amount < domain.MinWithdrawal {
		return e.reply(userID, msgBelowMinimum)
	}

	acc, err := e.Ledger.GetAccount(userID)
	if err != nil {
		return e.internalError(userID, "withdraw", err)
	}
	if acc.Balance < amount {
		return e.reply(userID, insufficientText(amount, acc.Balance))
	}

	started := time.Now()
	result := e.Orders.PlaceOrder(ctx, link, amount)
	e.Metrics.OrderLatency.Observe(time.Since(started).Seconds())

	if !result.Accepted() {
		e.Metrics.Orders.WithLabelValues("rejected").Inc()
		e.Logger.Info("Order rejected",
			zap.String("user_id", userID),
			zap.Int("amount", amount),
			zap.String("reason", result.Reason),
		)
		return e.reply(userID, orderFailedText(result.Reason))
	}
	e.Metrics.Orders.WithLabelValues("accepted").Inc()

	if _, err := e.Ledger.ApplyTransaction(userID, domain.WithdrawTx(amount, link)); err != nil {
		e.Logger.Error("Order accepted but not debited",
			zap.String("user_id", userID),
			zap.String("order_id", result.OrderID),
			zap.Int("amount", amount),
			zap.String("link", link),
			zap.Error(err),
		)
		return e.internalError(userID, "withdraw", err)
	}
	e.Metrics.PointsWithdrawn.Add(float64(amount))

	e.Logger.Info("Withdrawal completed",
		zap.String("user_id", userID),
		zap.String("order_id", result.OrderID),
		zap.Int("amount", amount),
	)

	replyErr := e.reply(userID, orderSuccessText(amount, result.OrderID))
	e.announcePayout(userID, amount, link)
	return replyErr
}

// announcePayout is best effort; the debit stands either way
func (e *Engine) announcePayout(userID string, amount int, link string) {
	channel := e.Settings.PayoutChannel()
	if !strings.HasPrefix(channel, "@") {
		return
	}
	if err := e.Messenger.SendText(channel, payoutText(userID, amount, link)); err != nil {
		e.Logger.Warn("Failed to announce payout",
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
}

// redeem claims the code first and releases it again if the credit cannot
// be recorded, so a failure never mints points
func (e *Engine) redeem(userID, text string) error {
	code := domain.NormalizeCode(text)
	if code == "" {
		e.Metrics.Redemptions.WithLabelValues("invalid").Inc()
		return e.reply(userID, msgInvalidCode)
	}

	if _, err := e.Ledger.GetAccount(userID); err != nil {
		return e.internalError(userID, "redeem", err)
	}

	value, err := e.Codes.Redeem(code, userID)
	switch {
	case errors.Is(err, domain.ErrCodeNotFound), errors.Is(err, domain.ErrCodeAlreadyUsed):
		e.Metrics.Redemptions.WithLabelValues("invalid").Inc()
		return e.reply(userID, msgInvalidCode)
	case err != nil:
		return e.internalError(userID, "redeem", err)
	}

	if _, err := e.Ledger.ApplyTransaction(userID, domain.RedeemTx(value, code)); err != nil {
		if relErr := e.Codes.Release(code, userID); relErr != nil {
			e.Logger.Error("Failed to release code after credit failure",
				zap.String("user_id", userID),
				zap.String("code", code),
				zap.Error(relErr),
			)
		}
		return e.internalError(userID, "redeem", err)
	}

	e.Metrics.Redemptions.WithLabelValues("redeemed").Inc()
	e.Logger.Info("Code redeemed",
		zap.String("user_id", userID),
		zap.String("code", code),
		zap.Int("value", value),
	)
	return e.reply(userID, redeemSuccessText(value))
}

func (e *Engine) adminLogin(userID, password string) error {
	if !e.Auth.CheckPassword(password) {
		e.Logger.Warn("Wrong admin password", zap.String("user_id", userID))
		return e.reply(userID, msgWrongPassword)
	}

	if _, err := e.Ledger.GetAccount(userID); err != nil {
		return e.internalError(userID, "admin", err)
	}
	if err := e.Auth.GrantAdmin(userID); err != nil {
		return e.internalError(userID, "admin", err)
	}

	e.Logger.Info("Admin access granted", zap.String("user_id", userID))
	return e.reply(userID, msgAdminWelcome)
}
