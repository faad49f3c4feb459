package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kr-reversion-bot/internal/alerts"
	"kr-reversion-bot/internal/bracket"

	"go.uber.org/zap"
)

const operatorOffsetKey = "telegram:operator:last_update_id"

func (a *App) startOperator(ctx context.Context) {
	if !a.cfg.Telegram.OperatorEnabled {
		return
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(a.cfg.Telegram.ChatID), 10, 64)
	if err != nil {
		a.log.Warn("telegram operator disabled: invalid chat_id", zap.Error(err))
		return
	}
	pollInterval := a.cfg.Telegram.OperatorPollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	allowedUsers := make(map[int64]struct{}, len(a.cfg.Telegram.OperatorAllowedUsers))
	for _, id := range a.cfg.Telegram.OperatorAllowedUsers {
		allowedUsers[id] = struct{}{}
	}
	go a.operatorLoop(ctx, chatID, allowedUsers, pollInterval)
}

func (a *App) operatorLoop(ctx context.Context, chatID int64, allowedUsers map[int64]struct{}, pollInterval time.Duration) {
	offset := a.loadOperatorOffset(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		updates, err := a.alerts.GetUpdates(ctx, offset, pollInterval)
		if err != nil {
			if !a.operatorWarned {
				a.log.Warn("telegram operator poll failed", zap.Error(err))
				a.operatorWarned = true
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		if a.operatorWarned {
			a.log.Info("telegram operator recovered")
			a.operatorWarned = false
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
				a.saveOperatorOffset(ctx, offset)
			}
			a.handleOperatorUpdate(ctx, upd, chatID, allowedUsers)
		}
	}
}

func (a *App) handleOperatorUpdate(ctx context.Context, upd alerts.Update, chatID int64, allowedUsers map[int64]struct{}) {
	if upd.ChatID != chatID {
		return
	}
	if len(allowedUsers) > 0 {
		if _, ok := allowedUsers[upd.UserID]; !ok {
			return
		}
	}
	cmd, ok := parseOperatorCommand(upd.Text)
	if !ok {
		return
	}
	a.log.Info("operator command",
		zap.String("command", cmd),
		zap.Int64("user_id", upd.UserID),
		zap.String("username", upd.Username))
	resp := a.handleOperatorCommand(cmd)
	if resp == "" {
		return
	}
	if err := a.alerts.Send(ctx, resp); err != nil {
		a.log.Warn("operator response failed", zap.Error(err))
	}
}

func parseOperatorCommand(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", false
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToLower(strings.TrimPrefix(fields[0], "/")), true
}

func (a *App) handleOperatorCommand(cmd string) string {
	switch cmd {
	case "status":
		return a.operatorStatus()
	case "pause":
		if a.paused.Swap(true) {
			return "entries already paused"
		}
		return "entries paused"
	case "resume":
		if !a.paused.Swap(false) {
			return "entries already active"
		}
		return "entries resumed"
	case "flatten":
		a.controller.ForceFlatten("operator command")
		return "flattened"
	case "help":
		return operatorHelpText()
	default:
		return operatorHelpText()
	}
}

func (a *App) operatorStatus() string {
	pos := a.controller.Position()
	state := a.controller.CurrentState()
	var b strings.Builder
	fmt.Fprintf(&b, "symbol: %s\n", a.cfg.Strategy.Symbol)
	fmt.Fprintf(&b, "state: %s\n", state)
	fmt.Fprintf(&b, "paused: %t\n", a.paused.Load())
	if pos.Direction == bracket.Flat {
		b.WriteString("position: flat")
	} else {
		fmt.Fprintf(&b, "position: %s %.4f @ %.4f", pos.Direction, pos.Quantity, pos.EntryPrice)
	}
	return b.String()
}

func operatorHelpText() string {
	return strings.Join([]string{
		"/status - current state and position",
		"/pause - suppress new entries",
		"/resume - allow new entries",
		"/flatten - cancel brackets and liquidate",
		"/help - this message",
	}, "\n")
}

func (a *App) loadOperatorOffset(ctx context.Context) int64 {
	raw, ok, err := a.store.Get(ctx, operatorOffsetKey)
	if err != nil {
		a.log.Warn("operator offset load failed", zap.Error(err))
		return 0
	}
	if !ok {
		return 0
	}
	offset, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		a.log.Warn("operator offset corrupt", zap.Error(err))
		return 0
	}
	return offset
}

func (a *App) saveOperatorOffset(ctx context.Context, offset int64) {
	if err := a.store.Set(ctx, operatorOffsetKey, strconv.FormatInt(offset, 10)); err != nil {
		a.log.Warn("operator offset save failed", zap.Error(err))
	}
}
