package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/raainshe/ratemind/internal/config"
	"github.com/raainshe/ratemind/internal/logging"
)

// Notifier sends one-way alerts to a Discord channel for events the
// control loop decides are worth a human's attention: the shared
// (global) precision adjustment pinned at a clamp bound when a cycle
// closes, or a forced reannounce firing. It never registers slash commands or
// listens for interactions — status lookups belong to the CLI/TUI.
type Notifier struct {
	session *discordgo.Session
	channel string
	logger  *logging.Logger
	enabled bool

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// minRepeatInterval throttles identical alert keys so a torrent stuck
// at its clamp doesn't page the channel every tick.
const minRepeatInterval = 15 * time.Minute

// New builds a Notifier from NotifyConfig. When cfg.Enabled is false,
// the returned Notifier is a no-op — callers don't need to branch on
// configuration before calling Alert.
func New(cfg config.NotifyConfig) (*Notifier, error) {
	logger := logging.GetNotifyLogger()

	if !cfg.Enabled {
		return &Notifier{logger: logger, enabled: false}, nil
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	return &Notifier{
		session:  session,
		channel:  cfg.DiscordChannel,
		logger:   logger,
		enabled:  true,
		lastSent: make(map[string]time.Time),
	}, nil
}

// Start opens the Discord connection. No-op when disabled.
func (n *Notifier) Start() error {
	if !n.enabled {
		return nil
	}
	if err := n.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	n.logger.Info("Notifier connected to Discord")
	return nil
}

// Stop closes the Discord connection. No-op when disabled.
func (n *Notifier) Stop() error {
	if !n.enabled || n.session == nil {
		return nil
	}
	return n.session.Close()
}

// Alert sends message to the configured channel, deduplicated by key
// within minRepeatInterval. Failures are logged, not returned, so a
// Discord outage never interrupts the control loop.
func (n *Notifier) Alert(key, message string) {
	if !n.enabled {
		n.logger.WithField("key", key).Debug("Notifier disabled, dropping alert")
		return
	}

	n.mu.Lock()
	if last, ok := n.lastSent[key]; ok && time.Since(last) < minRepeatInterval {
		n.mu.Unlock()
		return
	}
	n.lastSent[key] = time.Now()
	n.mu.Unlock()

	_, err := n.session.ChannelMessageSend(n.channel, message)
	if err != nil {
		n.logger.WithError(err).WithField("key", key).Warn("Failed to deliver alert")
	}
}

// PrecisionClamped alerts that the process-wide precision adjustment
// has been pinned at a clamp bound, as seen when the named torrent
// closed a cycle, meaning the tracker can no longer correct further for
// a systematic over/under-delivery.
func (n *Notifier) PrecisionClamped(hash, name string, adjustment, bound float64) {
	n.Alert(
		"clamp:"+hash,
		fmt.Sprintf("⚠️ **%s** precision adjustment pinned at %.3f (bound %.3f) — systematic ratio drift", name, adjustment, bound),
	)
}

// ReannounceForced alerts that the reannounce optimizer forced an
// early tracker announce for a torrent.
func (n *Notifier) ReannounceForced(hash, name, reason string) {
	n.Alert(
		"reannounce:"+hash,
		fmt.Sprintf("📣 **%s** forced reannounce: %s", name, reason),
	)
}
