package internal

// Version is the released version of the SLA engine.
const Version = "1.0.0"
