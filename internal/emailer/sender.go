package emailer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/model"
	"github.com/outreach-mate/outreach-cli/internal/store"
)

// OutboundEmail is one message handed to a sending transport.
type OutboundEmail struct {
	To       string
	Subject  string
	Body     string
	Provider model.EmailProvider
}

// Sender delivers an email and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, email OutboundEmail) (messageID string, err error)
}

// DryRunSender logs the message instead of delivering it. Used when no
// provider credentials are configured.
type DryRunSender struct{}

func (DryRunSender) Send(_ context.Context, email OutboundEmail) (string, error) {
	id := "dry-run-" + uuid.New().String()
	zap.L().Info("emailer: dry-run send",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("provider", string(email.Provider)),
		zap.String("message_id", id),
	)
	return id, nil
}

// Drafter produces email drafts for a prospect. Satisfied by Generator.
type Drafter interface {
	GenerateCompanyDraft(ctx context.Context, p *model.Prospect) (*model.EmailDraft, error)
	GenerateContactDraft(ctx context.Context, p *model.Prospect, contactID string) (*model.EmailDraft, error)
}

// SendRequest identifies one draft to deliver.
type SendRequest struct {
	ProspectID string
	ContactID  string // empty for company-level sends
	Provider   model.EmailProvider
}

// Service coordinates draft generation, delivery, and logging for one
// prospect at a time.
type Service struct {
	store   store.Store
	drafter Drafter
	sender  Sender
}

// NewService wires a Service. A nil sender falls back to DryRunSender.
func NewService(st store.Store, drafter Drafter, sender Sender) *Service {
	if sender == nil {
		sender = DryRunSender{}
	}
	return &Service{store: st, drafter: drafter, sender: sender}
}

// Draft generates and persists a draft for the prospect. An empty contactID
// produces the company-level draft. Regeneration overwrites the stored draft.
func (s *Service) Draft(ctx context.Context, prospectID, contactID string) (*model.EmailDraft, error) {
	prospect, err := s.store.GetProspect(ctx, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "emailer: load prospect")
	}

	var draft *model.EmailDraft
	if contactID == "" {
		draft, err = s.drafter.GenerateCompanyDraft(ctx, prospect)
	} else {
		draft, err = s.drafter.GenerateContactDraft(ctx, prospect, contactID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveEmailDraft(ctx, draft); err != nil {
		return nil, eris.Wrap(err, "emailer: save draft")
	}
	logDraft(draft)
	return draft, nil
}

// DraftAll generates the company draft plus one draft per contact with a
// primary email, then persists the batch in a single store call.
func (s *Service) DraftAll(ctx context.Context, prospectID string) ([]*model.EmailDraft, error) {
	prospect, err := s.store.GetProspect(ctx, prospectID)
	if err != nil {
		return nil, eris.Wrap(err, "emailer: load prospect")
	}

	companyDraft, err := s.drafter.GenerateCompanyDraft(ctx, prospect)
	if err != nil {
		return nil, err
	}
	drafts := []*model.EmailDraft{companyDraft}

	for _, c := range prospect.Contacts {
		if c.EmailPrimary == "" {
			continue
		}
		draft, err := s.drafter.GenerateContactDraft(ctx, prospect, c.ContactID)
		if err != nil {
			zap.L().Warn("emailer: contact draft failed",
				zap.String("prospect_id", prospectID),
				zap.String("contact_id", c.ContactID),
				zap.Error(err))
			continue
		}
		drafts = append(drafts, draft)
	}

	if err := s.store.SaveEmailDrafts(ctx, drafts); err != nil {
		return nil, eris.Wrap(err, "emailer: save drafts")
	}
	for _, d := range drafts {
		logDraft(d)
	}
	return drafts, nil
}

// Send delivers the stored draft for the request, generating one first if
// none exists. Every attempt is recorded in the email log; a successful
// company-level or contact send moves the prospect to contacted.
func (s *Service) Send(ctx context.Context, req SendRequest) (*model.EmailLogEntry, error) {
	if !model.ValidProvider(req.Provider) {
		return nil, eris.Errorf("emailer: unsupported provider: %s", req.Provider)
	}

	prospect, err := s.store.GetProspect(ctx, req.ProspectID)
	if err != nil {
		return nil, eris.Wrap(err, "emailer: load prospect")
	}

	typ := model.EmailTypeCompany
	if req.ContactID != "" {
		typ = model.EmailTypeIndividual
	}

	to, err := recipientFor(prospect, req.ContactID)
	if err != nil {
		return nil, err
	}

	draft, err := s.store.GetEmailDraft(ctx, req.ProspectID, req.ContactID, typ)
	if err != nil {
		return nil, eris.Wrap(err, "emailer: load draft")
	}
	if draft == nil {
		draft, err = s.Draft(ctx, req.ProspectID, req.ContactID)
		if err != nil {
			return nil, err
		}
	}

	entry := &model.EmailLogEntry{
		ProspectID: req.ProspectID,
		ContactID:  req.ContactID,
		Type:       typ,
		Provider:   req.Provider,
		SentAt:     time.Now().UTC(),
	}

	messageID, sendErr := s.sender.Send(ctx, OutboundEmail{
		To:       to,
		Subject:  draft.Subject,
		Body:     draft.Body,
		Provider: req.Provider,
	})
	if sendErr != nil {
		entry.Status = model.EmailLogFailed
		entry.Error = sendErr.Error()
	} else {
		entry.Status = model.EmailLogSent
		entry.MessageID = messageID
	}

	// The log row must land even when delivery failed.
	if err := s.store.AppendEmailLog(ctx, entry); err != nil {
		return nil, eris.Wrap(err, "emailer: append email log")
	}
	if sendErr != nil {
		return entry, eris.Wrap(sendErr, "emailer: send")
	}

	if prospect.Status != model.ProspectStatusContacted {
		if err := s.store.UpdateProspectStatus(ctx, prospect.ID, model.ProspectStatusContacted); err != nil {
			zap.L().Warn("emailer: mark contacted failed",
				zap.String("prospect_id", prospect.ID), zap.Error(err))
		}
	}

	zap.L().Info("emailer: sent",
		zap.String("prospect_id", entry.ProspectID),
		zap.String("contact_id", entry.ContactID),
		zap.String("to", to),
		zap.String("provider", string(req.Provider)),
		zap.String("message_id", entry.MessageID),
	)
	return entry, nil
}

// recipientFor resolves the delivery address. Company-level sends go to the
// first contact with a primary email.
func recipientFor(p *model.Prospect, contactID string) (string, error) {
	if contactID != "" {
		c := p.ContactByID(contactID)
		if c == nil {
			return "", eris.Errorf("emailer: contact not found: %s", contactID)
		}
		if c.EmailPrimary == "" {
			return "", eris.Errorf("emailer: contact has no primary email: %s", contactID)
		}
		return c.EmailPrimary, nil
	}
	for _, c := range p.Contacts {
		if c.EmailPrimary != "" {
			return c.EmailPrimary, nil
		}
	}
	return "", eris.New("emailer: prospect has no contact with a primary email")
}
