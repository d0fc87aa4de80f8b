// Package logging is the leveled printf logger used across photoshelf.
//
// Lines go through the standard log package as "[LEVEL] message". The level
// comes from LOG_LEVEL (debug, info, warn, error; default info) and DEBUG=true
// forces debug. Ingestion failures are logged through [Op], which adds the
// operation name and the file:line that reported it.
package logging
