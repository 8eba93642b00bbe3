package http

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nortonjulian/chatforia-signal/internal/sealer"
)

const maxSealRecipients = 64

// KeysHandlers seals call keys for recipients.
type KeysHandlers struct {
	sealer *sealer.Service
	log    *zerolog.Logger
}

// NewKeysHandlers creates a new keys handlers instance.
func NewKeysHandlers(svc *sealer.Service, logger *zerolog.Logger) *KeysHandlers {
	return &KeysHandlers{sealer: svc, log: logger}
}

// SealRecipient is one target of a seal request.
type SealRecipient struct {
	UserID    int64  `json:"userId" binding:"required"`
	PublicKey string `json:"publicKey" binding:"required"`
}

// SealRequest is the body of POST /api/keys/seal. Keys are base64.
type SealRequest struct {
	Key        string          `json:"key" binding:"required"`
	Recipients []SealRecipient `json:"recipients" binding:"required,min=1,dive"`
}

// SealedKeyResponse is one sealed copy of the key.
type SealedKeyResponse struct {
	UserID    int64  `json:"userId"`
	SealedKey string `json:"sealedKey"`
}

// SealResponse is the body returned by POST /api/keys/seal.
type SealResponse struct {
	Sealed []SealedKeyResponse `json:"sealed"`
}

// Seal encrypts the call key once per recipient.
// POST /api/keys/seal
func (h *KeysHandlers) Seal(c *gin.Context) {
	uid, ok := userIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid seal request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Recipients) > maxSealRecipients {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "too many recipients"})
		return
	}

	key, err := base64.StdEncoding.DecodeString(req.Key)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "key is not base64"})
		return
	}
	recipients := make([]sealer.Recipient, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		pub, err := base64.StdEncoding.DecodeString(r.PublicKey)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "publicKey is not base64"})
			return
		}
		recipients = append(recipients, sealer.Recipient{UserID: r.UserID, PublicKey: pub})
	}

	sealed, err := h.sealer.SealForRecipients(c.Request.Context(), key, recipients)
	if err != nil {
		switch {
		case errors.Is(err, sealer.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "key must be 32 bytes"})
		case errors.Is(err, sealer.ErrInvalidPublicKey):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "public keys must be 32 bytes"})
		default:
			h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to seal key")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	resp := SealResponse{Sealed: make([]SealedKeyResponse, 0, len(sealed))}
	for _, s := range sealed {
		resp.Sealed = append(resp.Sealed, SealedKeyResponse{
			UserID:    s.UserID,
			SealedKey: base64.StdEncoding.EncodeToString(s.SealedKey),
		})
	}
	c.JSON(http.StatusOK, resp)
}
