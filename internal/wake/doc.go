// Package wake runs one wake cycle of a battery-powered sensor node:
// measure the supply voltage, join the wireless network, open an MQTT
// session, deliver exactly one report, then power down.
//
// Every stage is bounded by a retry budget. The associator counts
// strikes in fixed blink windows, the broker session counts an unbroken
// run of failed handshakes, and the publish cycle counts failed
// deliveries spaced at least one publish interval apart. Exhausting any
// budget is terminal for the cycle.
//
// Inner components never touch the power hardware. They return an
// [Outcome] that is either [Continue] or a [Shutdown] carrying a
// [Reason]; the [Controller] is the only caller of [Power.Shutdown],
// which it invokes exactly once when its tick loop ends. Time comes from
// an injected [Clock].
//
// The package is single-threaded. Delays inside the associator's blink
// loop and the broker backoff block the whole cycle; nothing useful can
// happen until the link or handshake either succeeds or exhausts.
package wake
