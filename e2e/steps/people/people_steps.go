package people

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	StatusCode() int
	Body() []byte
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers badge scan step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &peopleSteps{tc: tc}

	ctx.Step(`^badge "([^"]*)" is scanned$`, steps.scanBadge)
	ctx.Step(`^a badge id of (\d+) characters is scanned$`, steps.scanLongBadge)
	ctx.Step(`^I list registered people$`, steps.listPeople)

	ctx.Step(`^the person "([^"]*)" should be returned$`, steps.personShouldBeReturned)
	ctx.Step(`^the person should be (active|inactive)$`, steps.personActivity)
	ctx.Step(`^the list should contain badge "([^"]*)"$`, steps.listShouldContain)
}

type peopleSteps struct {
	tc TestContext
}

func (s *peopleSteps) scanBadge(_ context.Context, badgeID string) error {
	return s.tc.GET("/api/people/" + badgeID)
}

func (s *peopleSteps) scanLongBadge(_ context.Context, n int) error {
	return s.tc.GET("/api/people/" + strings.Repeat("X", n))
}

func (s *peopleSteps) listPeople(context.Context) error {
	return s.tc.GET("/api/people")
}

func (s *peopleSteps) personShouldBeReturned(_ context.Context, fullName string) error {
	v, err := s.tc.GetResponseField("fullName")
	if err != nil {
		return err
	}
	if v != fullName {
		return fmt.Errorf("expected %q, got %v", fullName, v)
	}
	return nil
}

func (s *peopleSteps) personActivity(_ context.Context, state string) error {
	v, err := s.tc.GetResponseField("active")
	if err != nil {
		return err
	}
	if want := state == "active"; v != want {
		return fmt.Errorf("expected active=%t, got %v", want, v)
	}
	return nil
}

func (s *peopleSteps) listShouldContain(_ context.Context, badgeID string) error {
	var list []map[string]any
	if err := json.Unmarshal(s.tc.Body(), &list); err != nil {
		return fmt.Errorf("response is not a JSON array: %w", err)
	}
	for _, p := range list {
		if p["badgeId"] == badgeID {
			return nil
		}
	}
	return fmt.Errorf("badge %s not in list of %d", badgeID, len(list))
}
