// Package push sends one encrypted Web Push message to a subscriber and
// classifies the result for the delivery workers.
//
// Encryption and VAPID signing are delegated to github.com/imjasonh/webpush;
// this package only builds the subscription/options values it needs and
// turns its error surface into the same outcome classes the original
// service's send_push distinguishes: success, dead endpoint (404/410),
// rate-limited (429 + Retry-After), transient (5xx/transport), and other
// permanent 4xx.
package push
