package e2e

import (
	"github.com/cucumber/godog"

	"badgegate/e2e/steps/common"
	"badgegate/e2e/steps/people"
)

// RegisterSteps wires the HTTP steps and the badge-scan steps onto one scenario.
func RegisterSteps(sc *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(sc, tc)
	people.RegisterSteps(sc, tc)
}
