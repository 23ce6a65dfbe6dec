package push

import (
	"fmt"
	"sync"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/storelinkhq/storelink-server/cmd/models"
)

// ChunkSize is the gateway's hard per-call message limit
const ChunkSize = 100

// BroadcastMessage is the content fanned out to a segment
type BroadcastMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// DispatchResult is the tagged outcome of one chunk. Either the chunk was
// accepted and carries tickets, or it failed as a unit and carries the
// reason; one chunk failing never aborts the others.
type DispatchResult struct {
	Chunk     int             `json:"chunk"`
	Size      int             `json:"size"`
	OK        bool            `json:"ok"`
	Delivered int             `json:"delivered"`
	Error     string          `json:"error,omitempty"`
	Tickets   []models.Ticket `json:"-"`
}

// Dispatcher fans a broadcast out to the Expo push gateway in
// gateway-sized chunks.
type Dispatcher struct {
	client *expo.PushClient
}

func NewDispatcher(client *expo.PushClient) *Dispatcher {
	return &Dispatcher{client: client}
}

// Dispatch splits tokens into chunks of at most ChunkSize, sends each
// chunk as one gateway request carrying one single-recipient message per
// token, and joins the per-chunk results in order. Chunks are sent
// concurrently; there is no ordering guarantee between them.
func (d *Dispatcher) Dispatch(devices []models.DeviceToken, msg BroadcastMessage, broadcastID string) []DispatchResult {
	chunks := chunkDevices(devices, ChunkSize)
	results := make([]DispatchResult, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(index int, chunk []models.DeviceToken) {
			defer wg.Done()
			results[index] = d.sendChunk(index, chunk, msg, broadcastID)
		}(i, chunk)
	}
	wg.Wait()

	return results
}

// sendChunk builds and sends one gateway request for a chunk of tokens
func (d *Dispatcher) sendChunk(index int, chunk []models.DeviceToken, msg BroadcastMessage, broadcastID string) DispatchResult {
	result := DispatchResult{Chunk: index, Size: len(chunk)}

	// Responses come back positionally, so track which device produced
	// each message. Segment resolution already filtered malformed tokens,
	// this just keeps the mapping honest if one slips through.
	recipients := make([]models.DeviceToken, 0, len(chunk))
	messages := make([]expo.PushMessage, 0, len(chunk))
	for _, device := range chunk {
		token, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			continue
		}
		recipients = append(recipients, device)
		messages = append(messages, expo.PushMessage{
			To:       []expo.ExponentPushToken{token},
			Title:    msg.Title,
			Body:     msg.Body,
			Data:     msg.Data,
			Sound:    "default",
			Priority: expo.DefaultPriority,
		})
	}

	responses, err := d.client.PublishMultiple(messages)
	if err != nil {
		result.Error = fmt.Sprintf("gateway request failed: %v", err)
		return result
	}

	if len(responses) != len(messages) {
		result.Error = fmt.Sprintf("gateway returned %d results for %d messages", len(responses), len(messages))
		return result
	}

	result.OK = true
	for i, response := range responses {
		if response.Status != models.TicketStatusOK {
			continue
		}
		result.Delivered++
		if response.ID == "" {
			continue
		}
		result.Tickets = append(result.Tickets, models.Ticket{
			TicketID:    response.ID,
			Token:       recipients[i].Token,
			BroadcastID: broadcastID,
			Status:      models.TicketStatusQueued,
		})
	}

	return result
}

func chunkDevices(devices []models.DeviceToken, size int) [][]models.DeviceToken {
	var chunks [][]models.DeviceToken
	for start := 0; start < len(devices); start += size {
		end := start + size
		if end > len(devices) {
			end = len(devices)
		}
		chunks = append(chunks, devices[start:end])
	}
	return chunks
}
