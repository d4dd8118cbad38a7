package node

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"meshchat/pkg/config"
	"meshchat/pkg/wire"
)

// handleFileStream serves one inbound file-exchange stream: read the
// request frame and acknowledge it with an empty body. There is no local
// file store; the acknowledgement keeps the protocol live for peers that
// probe it.
func (p *Peer) handleFileStream(s network.Stream) {
	defer func() {
		if err := s.Close(); err != nil {
			log.Debugf("failed to close file stream: %v", err)
		}
	}()

	fileID, err := wire.ReadRequest(s)
	if err != nil {
		log.Debugf("failed to read file request from %s: %v", s.Conn().RemotePeer(), err)
		_ = s.Reset()
		return
	}
	if err := wire.WriteResponse(s, nil); err != nil {
		log.Debugf("failed to acknowledge file request from %s: %v", s.Conn().RemotePeer(), err)
		_ = s.Reset()
		return
	}
	p.emit(fileRequestEvent{from: s.Conn().RemotePeer(), fileID: fileID})
}

// requestFile runs one outbound request/response exchange on a dedicated
// stream. The stream lives for exactly one pair; any framing error poisons
// it and it is reset rather than resynchronized.
func (p *Peer) requestFile(to peer.ID, fileID string) {
	go func() {
		s, err := p.host.NewStream(p.ctx, to, config.FileProtocolID)
		if err != nil {
			p.emit(diagEvent{text: fmt.Sprintf("failed to open file stream to %s: %v", to, err)})
			return
		}
		defer func() {
			if err := s.Close(); err != nil {
				log.Debugf("failed to close file stream: %v", err)
			}
		}()

		if err := wire.WriteRequest(s, fileID); err != nil {
			_ = s.Reset()
			p.emit(diagEvent{text: fmt.Sprintf("failed to send file request to %s: %v", to, err)})
			return
		}
		if err := s.CloseWrite(); err != nil {
			_ = s.Reset()
			p.emit(diagEvent{text: fmt.Sprintf("failed to close write side to %s: %v", to, err)})
			return
		}

		body, err := wire.ReadResponse(s)
		if err != nil {
			_ = s.Reset()
			p.emit(diagEvent{text: fmt.Sprintf("failed to read file response from %s: %v", to, err)})
			return
		}
		p.emit(fileResponseEvent{from: to, fileID: fileID, size: len(body)})
	}()
}
