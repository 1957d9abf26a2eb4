package xmpp

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// scheduleReconnectLocked arms the next attempt after a lost transport. The
// attempt counter resets once a session becomes ready.
func (c *Client) scheduleReconnectLocked() {
	cfg := c.lastCfg
	if cfg == nil || !cfg.AutoReconnect {
		c.failOutboxLocked()
		return
	}
	if c.reconnectAttempts >= MaxReconnectAttempts {
		c.logger.Warn("Giving up reconnecting", zap.Int("attempts", c.reconnectAttempts))
		c.noticeLocked(fmt.Sprintf("Reconnection failed after %d attempts", MaxReconnectAttempts), SeverityError)
		c.failOutboxLocked()
		return
	}

	c.reconnectAttempts++
	c.metrics.ReconnectAttempt()
	c.noticeLocked(fmt.Sprintf("Reconnecting... (%d/%d)", c.reconnectAttempts, MaxReconnectAttempts), SeverityInfo)

	delay := cfg.reconnectInterval()
	c.logger.Info("Scheduling reconnect",
		zap.Int("attempt", c.reconnectAttempts),
		zap.Duration("delay", delay))

	c.reconnectGen++
	gen := c.reconnectGen
	c.reconnectTimer = time.AfterFunc(delay, func() { c.reconnect(gen) })
}

func (c *Client) reconnect(gen int) {
	c.mu.Lock()
	defer c.unlock()

	if gen != c.reconnectGen || c.reconnectTimer == nil {
		return
	}
	c.reconnectTimer = nil
	if c.sess != nil || c.lastCfg == nil {
		return
	}
	c.startLocked(*c.lastCfg, true)
}

// stopReconnectLocked cancels a scheduled reconnect.
func (c *Client) stopReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectGen++
}
