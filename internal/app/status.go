package app

import (
	"fmt"
	"time"

	"github.com/nhle/portal-inbox/internal/model"
	appsync "github.com/nhle/portal-inbox/internal/sync"
)

// connectionLabel describes the realtime channel for the header. The
// second value selects the color.
func connectionLabel(
	conn model.ConnectionState,
	sup appsync.Status,
	signedIn bool,
	spin string,
	now time.Time,
) (string, model.ConnectionStatus) {
	if !signedIn {
		return "not signed in – run portal-inbox login", model.StatusNotInitialized
	}
	if sup.State == appsync.StateGaveUp {
		return "gave up – press r", model.StatusDisconnected
	}

	switch conn.Status {
	case model.StatusConnected:
		return "● live", model.StatusConnected
	case model.StatusConnecting:
		return spin + " connecting…", model.StatusConnecting
	case model.StatusDisconnected:
		if sup.State == appsync.StatePolling && !sup.NextRetry.IsZero() {
			wait := sup.NextRetry.Sub(now).Round(time.Second)
			if wait > 0 {
				return fmt.Sprintf("offline – retry in %s", wait), model.StatusDisconnected
			}
		}
		return spin + " offline – reconnecting", model.StatusDisconnected
	default:
		return spin + " starting…", model.StatusNotInitialized
	}
}

// headerTitle renders the application title with the unread badge.
func headerTitle(unread int) string {
	if unread > 0 {
		return fmt.Sprintf("Portal Inbox [%d unread]", unread)
	}
	return "Portal Inbox"
}
