package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
)

// Pending requests live in the process, so a batch is the unit in which a
// request can be submitted and then resolved.
type script struct {
	Steps []step `yaml:"steps"`
}

// step sets exactly one field.
type step struct {
	Register       *personInput     `yaml:"register"`
	AddLink        *addLinkStep     `yaml:"add_link"`
	RemoveNode     *removeNodeStep  `yaml:"remove_node"`
	ChangeInfo     *changeInfoStep  `yaml:"change_info"`
	RequestRemoval *partiesStep     `yaml:"request_removal"`
	NewRelative    *newRelativeStep `yaml:"new_relative"`
	Resolve        *resolveStep     `yaml:"resolve"`
}

type personInput struct {
	SSN         string `yaml:"ssn"`
	Given       string `yaml:"given"`
	Family      string `yaml:"family"`
	Birth       string `yaml:"birth"`
	Gender      string `yaml:"gender"`
	Nationality string `yaml:"nationality"`
	Visibility  string `yaml:"visibility"`
	Email       string `yaml:"email"`
	Phone       string `yaml:"phone"`
	Address     string `yaml:"address"`
	Role        string `yaml:"role"`
}

type addLinkStep struct {
	Owner     string      `yaml:"owner"`
	Requester string      `yaml:"requester"`
	Kind      string      `yaml:"kind"`
	Person    personInput `yaml:"person"`
}

type removeNodeStep struct {
	Owner  string `yaml:"owner"`
	Member string `yaml:"member"`
}

type changeInfoStep struct {
	Requester   string  `yaml:"requester"`
	Target      string  `yaml:"target"`
	Given       *string `yaml:"given"`
	Family      *string `yaml:"family"`
	Nationality *string `yaml:"nationality"`
	Gender      *string `yaml:"gender"`
	Email       *string `yaml:"email"`
	Phone       *string `yaml:"phone"`
	Address     *string `yaml:"address"`
}

type partiesStep struct {
	Requester string `yaml:"requester"`
	Target    string `yaml:"target"`
}

type newRelativeStep struct {
	Requester string      `yaml:"requester"`
	Kind      string      `yaml:"kind"`
	Person    personInput `yaml:"person"`
}

// resolveStep resolves every request pending at that point, optionally
// restricted to one request type.
type resolveStep struct {
	Admin  string `yaml:"admin"`
	Accept bool   `yaml:"accept"`
	Type   string `yaml:"type"`
}

func newBatchCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <script.yaml>",
		Short: "Apply a script of registrations, requests and resolutions",
		Long: `Apply a YAML script of steps in order, stopping at the first error.

Example script:
  steps:
    - register: {ssn: "1001", given: Jean, family: Dupont, gender: MALE, birth: 1960-05-01, email: jean@example.org}
    - add_link:
        owner: "1001"
        requester: "1001"
        kind: FATHER
        person: {given: Louis, family: Dupont, gender: MALE, birth: 1930-02-02}
    - resolve: {admin: "9000", accept: true}

Persons are referenced by identifier, or by "family|given|yyyy-mm-dd" when
they have none.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := readScript(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return runScript(ctx, a, sc, cmd.OutOrStdout())
			})
		},
	}
}

func readScript(path string) (script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return script{}, fmt.Errorf("read script: %w", err)
	}
	var sc script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return script{}, fmt.Errorf("parse script %s: %w", path, err)
	}
	return sc, nil
}

func runScript(ctx context.Context, a *app, sc script, out io.Writer) error {
	for i, st := range sc.Steps {
		if err := runStep(ctx, a, st, out); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func runStep(ctx context.Context, a *app, st step, out io.Writer) error {
	svc := a.svc
	switch {
	case st.Register != nil:
		attrs, err := st.Register.attributes()
		if err != nil {
			return err
		}
		p, req, err := svc.Register(ctx, attrs)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "registered %s, validation request %s\n", p.Identity(), req.ID)

	case st.AddLink != nil:
		s := st.AddLink
		attrs, kind, err := relative(s.Person, s.Kind)
		if err != nil {
			return err
		}
		res, err := svc.AddLinkRequest(ctx, s.Owner, parseKey(s.Requester), attrs, kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "add_link %s %s: %s%s\n", kind, attrs.GivenName, res.Outcome, requestSuffix(res.Request))

	case st.RemoveNode != nil:
		res, err := svc.RemoveNode(ctx, st.RemoveNode.Owner, parseKey(st.RemoveNode.Member))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "remove_node %s: %s%s\n", st.RemoveNode.Member, res.Outcome, requestSuffix(res.Request))

	case st.ChangeInfo != nil:
		changes, err := st.ChangeInfo.changes()
		if err != nil {
			return err
		}
		req, err := svc.RequestInfoChange(ctx, st.ChangeInfo.Requester, parseKey(st.ChangeInfo.Target), changes)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "change_info %s: pending%s\n", st.ChangeInfo.Target, requestSuffix(req))

	case st.RequestRemoval != nil:
		req, err := svc.RequestRemoval(ctx, st.RequestRemoval.Requester, parseKey(st.RequestRemoval.Target))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "request_removal %s: pending%s\n", st.RequestRemoval.Target, requestSuffix(req))

	case st.NewRelative != nil:
		s := st.NewRelative
		attrs, kind, err := relative(s.Person, s.Kind)
		if err != nil {
			return err
		}
		req, err := svc.RequestNewRelative(ctx, s.Requester, attrs, kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "new_relative %s %s: pending%s\n", kind, attrs.GivenName, requestSuffix(req))

	case st.Resolve != nil:
		return resolvePending(ctx, a, *st.Resolve, out)

	default:
		return fmt.Errorf("empty step")
	}
	return nil
}

func resolvePending(ctx context.Context, a *app, s resolveStep, out io.Writer) error {
	for _, r := range a.svc.Pending(ctx) {
		if s.Type != "" && !strings.EqualFold(string(r.Type), s.Type) {
			continue
		}
		resolved, err := a.svc.Resolve(ctx, s.Admin, r.ID, s.Accept)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("resolve %s %s: %s", r.Type, r.ID, strings.ToLower(string(resolved.Status)))
		if resolved.Reason != "" {
			line += " (" + resolved.Reason + ")"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func (p personInput) attributes() (models.PersonAttributes, error) {
	attrs := models.PersonAttributes{
		SSN:         p.SSN,
		GivenName:   p.Given,
		FamilyName:  p.Family,
		Nationality: p.Nationality,
	}
	if p.Birth != "" {
		born, err := time.Parse("2006-01-02", p.Birth)
		if err != nil {
			return attrs, fmt.Errorf("birth date %q: %w", p.Birth, err)
		}
		attrs.BirthDate = born
	}
	g, err := domain.ParseGender(p.Gender)
	if err != nil {
		return attrs, err
	}
	attrs.Gender = g
	if p.Visibility != "" {
		v, err := domain.ParseVisibility(p.Visibility)
		if err != nil {
			return attrs, err
		}
		attrs.Visibility = v
	}
	if p.Email != "" || p.Phone != "" || p.Address != "" || p.Role != "" {
		attrs.Account = &models.Account{
			Email:   p.Email,
			Phone:   p.Phone,
			Address: p.Address,
			Role:    models.Role(strings.ToUpper(p.Role)),
		}
	}
	return attrs, nil
}

func relative(p personInput, kind string) (models.PersonAttributes, domain.RelationKind, error) {
	attrs, err := p.attributes()
	if err != nil {
		return attrs, "", err
	}
	k, err := domain.ParseRelationKind(kind)
	if err != nil {
		return attrs, "", err
	}
	return attrs, k, nil
}

func (s changeInfoStep) changes() (models.InfoChanges, error) {
	c := models.InfoChanges{
		GivenName:   s.Given,
		FamilyName:  s.Family,
		Nationality: s.Nationality,
		Contact: models.ContactChanges{
			Email:   s.Email,
			Phone:   s.Phone,
			Address: s.Address,
		},
	}
	if s.Gender != nil {
		g, err := domain.ParseGender(*s.Gender)
		if err != nil {
			return c, err
		}
		c.Gender = &g
	}
	return c, nil
}

// parseKey reads an identifier, or "family|given|yyyy-mm-dd" for persons
// without one. The birth date part may be empty.
func parseKey(s string) models.IdentityKey {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, "|", 3)
	if len(parts) == 1 {
		return models.IdentityKey{SSN: s}
	}
	k := models.IdentityKey{FamilyName: strings.ToLower(parts[0]), GivenName: parts[1]}
	if len(parts) == 3 {
		k.BirthDate = parts[2]
	}
	return k
}

func requestSuffix(r *models.Request) string {
	if r == nil {
		return ""
	}
	return " " + r.ID.String()
}
