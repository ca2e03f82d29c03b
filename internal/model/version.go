package model

// Version is the process-wide release tag. The upstream corpus repeated this
// literal in dozens of modules; it lives here exactly once.
const Version = "3.69.0"
