package main

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"infernode/session"

	"go.uber.org/zap"
)

// inferenceTimeout bounds one streamed response.
const inferenceTimeout = 5 * time.Minute

// handleSessionInit runs the handshake for a new session: job binding,
// codec validation, ECDH + KDF, signature check, decryption of the
// handshake's own payload, registry insertion. Failures leave no state
// behind.
func (n *Node) handleSessionInit(wsConn *WSConnection, msg *WSMessage) {
	log := n.logger.WithSession(msg.SessionID)

	payload := session.HandshakePayload{
		EphPubHex:     msg.EphPubHex,
		CiphertextHex: msg.CiphertextHex,
		NonceHex:      msg.NonceHex,
		SignatureHex:  msg.SignatureHex,
		AADHex:        msg.AADHex,
		SessionID:     msg.SessionID,
		JobTicket:     msg.JobTicket,
	}

	binding, err := n.binder.Bind(payload)
	if err != nil {
		log.Warn("Job binding rejected", zap.Error(err))
		n.sendError(wsConn, msg, session.CodeHandshakeRejected, "session handshake rejected")
		return
	}

	initial, err := n.handshake.Establish(payload, binding.Claimed)
	if err != nil {
		code, clientMsg := session.ClientError(err)
		n.logger.Security("Handshake failed",
			zap.String("session_id", msg.SessionID),
			zap.String("job_id", binding.JobID),
			zap.String("claimed_identity", binding.Claimed.Hex()),
			zap.Error(err))
		n.sendError(wsConn, msg, code, clientMsg)
		return
	}
	session.ZeroBytes(initial)

	wsConn.sessions[msg.SessionID] = true

	log.Info("Session established",
		zap.String("job_id", binding.JobID),
		zap.String("client", binding.Claimed.Hex()))

	ready := &WSMessage{
		Type:        MsgTypeSessionReady,
		SessionID:   msg.SessionID,
		ID:          msg.ID,
		NodeAddress: n.keys.Address().Hex(),
	}
	if err := wsConn.WriteMessage(ready); err != nil {
		log.Error("Failed to send session ready", zap.Error(err))
	}
}

// handleEncryptedMessage decrypts an application message, feeds the plaintext
// to the inference engine and streams the encrypted response back.
func (n *Node) handleEncryptedMessage(wsConn *WSConnection, msg *WSMessage) {
	log := n.logger.WithSession(msg.SessionID)

	if msg.Payload == nil {
		n.sendError(wsConn, msg, session.CodeInvalidEnvelope, "missing payload")
		return
	}

	env, err := session.ParseEnvelope(*msg.Payload)
	if err != nil {
		code, clientMsg := session.ClientError(err)
		log.Warn("Invalid envelope", zap.Error(err))
		n.sendError(wsConn, msg, code, clientMsg)
		return
	}

	plaintext, err := n.messages.Decrypt(msg.SessionID, env)
	if err != nil {
		code, clientMsg := session.ClientError(err)
		if errors.Is(err, session.ErrDecryptionFailed) {
			n.logger.Security("Undecryptable message",
				zap.String("session_id", msg.SessionID),
				zap.String("nonce", hex.EncodeToString(env.Nonce)))
		}
		n.sendError(wsConn, msg, code, clientMsg)
		return
	}
	defer session.ZeroBytes(plaintext)

	n.streamResponse(wsConn, msg, plaintext)
}

// streamResponse runs inference and seals each fragment with a fresh nonce
// and index-bound aad, then the terminal envelope with its finish reason.
func (n *Node) streamResponse(wsConn *WSConnection, msg *WSMessage, prompt []byte) {
	log := n.logger.WithSession(msg.SessionID)

	key, ok := n.registry.Get(msg.SessionID)
	if !ok {
		n.sendError(wsConn, msg, session.CodeSessionKeyNotFound, "no established session")
		return
	}
	enc := session.NewResponseEncryptor(key)
	session.ZeroBytes(key)
	defer enc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), inferenceTimeout)
	defer cancel()

	fragments, err := n.engine.Generate(ctx, msg.SessionID, prompt)
	if err != nil {
		log.Error("Inference failed to start", zap.Error(err))
		n.sendError(wsConn, msg, session.CodeInternalError, "internal error")
		return
	}
	// Drain on every exit path so the engine goroutine can finish.
	defer func() {
		cancel()
		for range fragments {
		}
	}()

	reason := session.FinishStop
	for fragment := range fragments {
		if fragment.Err != nil {
			if errors.Is(fragment.Err, context.DeadlineExceeded) {
				reason = session.FinishTimeout
			} else {
				reason = session.FinishError
			}
			log.Warn("Inference stream aborted", zap.Error(fragment.Err))
			break
		}

		chunk, err := enc.EncryptChunk(fragment.Data)
		if err != nil {
			log.Error("Failed to encrypt chunk", zap.Error(err))
			reason = session.FinishError
			break
		}

		payload := chunk.Envelope.WirePayload()
		payload.Index = chunk.Index
		out := &WSMessage{
			Type:      MsgTypeEncryptedChunk,
			SessionID: msg.SessionID,
			ID:        msg.ID,
			Tokens:    chunk.Index + 1,
			Payload:   &payload,
		}
		if err := wsConn.WriteMessage(out); err != nil {
			// Client gone mid-stream; nothing to release beyond the
			// encryptor's key copy.
			log.Info("Client disconnected mid-stream", zap.Error(err))
			return
		}
	}

	terminal, err := enc.Finish(reason, nil)
	if err != nil {
		log.Error("Failed to seal terminal envelope", zap.Error(err))
		n.sendError(wsConn, msg, session.CodeInternalError, "internal error")
		return
	}

	payload := terminal.Envelope.WirePayload()
	payload.FinishReason = string(terminal.FinishReason)
	out := &WSMessage{
		Type:      MsgTypeEncryptedResponse,
		SessionID: msg.SessionID,
		ID:        msg.ID,
		Tokens:    enc.ChunkCount(),
		Payload:   &payload,
	}
	if err := wsConn.WriteMessage(out); err != nil {
		log.Info("Client disconnected before terminal envelope", zap.Error(err))
		return
	}

	log.Debug("Response streamed",
		zap.Uint32("chunks", enc.ChunkCount()),
		zap.String("finish_reason", string(reason)))
}

// handleClose ends a session explicitly: the key is removed and zeroed.
func (n *Node) handleClose(wsConn *WSConnection, msg *WSMessage) {
	if msg.SessionID == "" {
		n.sendError(wsConn, msg, session.CodeInvalidEnvelope, "missing required field \"session_id\"")
		return
	}
	n.registry.Remove(msg.SessionID)
	delete(wsConn.sessions, msg.SessionID)
	n.logger.WithSession(msg.SessionID).Info("Session closed")
}
