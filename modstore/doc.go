// In-memory moderation state for the relay bot: who is banned, who is muted, and until when.
//
// Includes a storage interface and a mutex-guarded in-process implementation. Mute records
// expire; expired records are treated as absent by every reader and evicted lazily on read
// or in bulk by the periodic sweep (see the relay package). State is process-memory only
// and intentionally does not survive restarts.
package modstore
