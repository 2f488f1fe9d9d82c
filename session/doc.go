// Package session drives fzone peripherals from discovery to a ready,
// kept-alive command link.
//
// A Manager owns one transport. It registers every matching advertiser as a
// Session, runs each session's connection pipeline on request, and routes the
// transport's notifications and link drops to the owning session.
package session
