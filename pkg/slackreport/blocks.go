package slackreport

import (
	"fmt"
	"strconv"

	"github.com/slack-go/slack"

	"github.com/3leaps/prowscope/pkg/report"
)

const dateLayout = "2006-01-02 15:04:05"

func mrkdwn(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

// HeaderBlocks returns the blocks of the thread root message.
func HeaderBlocks(r *report.Report) []slack.Block {
	return []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "CI Report", true, false)),
		mrkdwn(fmt.Sprintf("*%s UTC\t:arrow_right:\t%s UTC*\n",
			r.FromDate.UTC().Format(dateLayout), r.ToDate.UTC().Format(dateLayout))),
	}
}

// bucket is the presentation of one job bucket.
type bucket struct {
	title       string
	total       int
	successes   int
	failures    int
	successRate *float64
	totalTrend  *int
	rateTrend   *float64
}

func (b bucket) text() string {
	text := fmt.Sprintf("•\t _%d_ in total  %s\n"+
		" \t\t *-* :done-circle-check: %d succeeded\n"+
		" \t\t *-* :x: %d failed\n",
		b.total, countTrend(b.totalTrend), b.successes, b.failures)

	if b.successRate != nil {
		text += fmt.Sprintf(" \t  _%.2f%%_ *success rate*", *b.successRate)
		if b.rateTrend != nil {
			text += "  " + rateTrend(*b.rateTrend)
		}
		text += "\n"
	}
	return text
}

func (b bucket) blocks(divider bool) []slack.Block {
	var blocks []slack.Block
	if divider {
		blocks = append(blocks, slack.NewDividerBlock())
	}
	return append(blocks, mrkdwn("*"+b.title+"*\n"), mrkdwn(b.text()))
}

// PeriodicBlocks returns the periodic e2e/subsystem message.
func PeriodicBlocks(r *report.Report, t *report.Trends) []slack.Block {
	b := bucket{
		title:       "Periodic e2e/subsystem jobs",
		total:       r.NumberOfE2EOrSubsystemPeriodicJobs,
		successes:   r.NumberOfSuccessfulE2EOrSubsystemPeriodicJobs,
		failures:    r.NumberOfFailingE2EOrSubsystemPeriodicJobs,
		successRate: r.SuccessRateForE2EOrSubsystemPeriodicJobs,
	}
	if t != nil {
		b.totalTrend = &t.NumberOfE2EOrSubsystemPeriodicJobs
		b.rateTrend = t.SuccessRateForE2EOrSubsystemPeriodicJobs
	}
	return b.blocks(false)
}

// PresubmitBlocks returns the presubmit e2e/subsystem message, including
// the rehearsal count.
func PresubmitBlocks(r *report.Report, t *report.Trends) []slack.Block {
	b := bucket{
		title:       "Presubmit e2e/subsystem jobs",
		total:       r.NumberOfE2EOrSubsystemPresubmitJobs,
		successes:   r.NumberOfSuccessfulE2EOrSubsystemPresubmitJobs,
		failures:    r.NumberOfFailingE2EOrSubsystemPresubmitJobs,
		successRate: r.SuccessRateForE2EOrSubsystemPresubmitJobs,
	}
	var rehearsalTrend *int
	if t != nil {
		b.totalTrend = &t.NumberOfE2EOrSubsystemPresubmitJobs
		b.rateTrend = t.SuccessRateForE2EOrSubsystemPresubmitJobs
		rehearsalTrend = &t.NumberOfRehearsalJobs
	}
	return append(b.blocks(true),
		mrkdwn(fmt.Sprintf("•\t _%d_ rehearsal jobs triggered  %s", r.NumberOfRehearsalJobs, countTrend(rehearsalTrend))))
}

// PostsubmitBlocks returns the postsubmit message.
func PostsubmitBlocks(r *report.Report, t *report.Trends) []slack.Block {
	b := bucket{
		title:       "Postsubmit jobs",
		total:       r.NumberOfPostsubmitJobs,
		successes:   r.NumberOfSuccessfulPostsubmitJobs,
		failures:    r.NumberOfFailingPostsubmitJobs,
		successRate: r.SuccessRateForPostsubmitJobs,
	}
	if t != nil {
		b.totalTrend = &t.NumberOfPostsubmitJobs
		b.rateTrend = t.SuccessRateForPostsubmitJobs
	}
	return b.blocks(true)
}

// MachineLeaseBlocks returns the machine lease message.
func MachineLeaseBlocks(r *report.Report, t *report.Trends) []slack.Block {
	var totalTrend, failedTrend *int
	if t != nil {
		totalTrend = &t.TotalNumberOfMachineLeased
		failedTrend = &t.NumberOfUnsuccessfulMachineLeases
	}
	return []slack.Block{
		slack.NewDividerBlock(),
		mrkdwn("*Equinix*"),
		mrkdwn(fmt.Sprintf("•\t _%d_ machine lease attempts  %s\n"+
			" \t\t *-* :done-circle-check: %d succeeded\n"+
			" \t\t *-* :x: %d failed  %s\n",
			r.TotalNumberOfMachineLeased, countTrend(totalTrend),
			r.NumberOfSuccessfulMachineLeases,
			r.NumberOfUnsuccessfulMachineLeases, countTrend(failedTrend))),
	}
}

// countTrend formats a count difference as "(+n)" or "(-n)", and nothing
// when it is zero or unknown.
func countTrend(trend *int) string {
	switch {
	case trend == nil || *trend == 0:
		return ""
	case *trend > 0:
		return "(+" + strconv.Itoa(*trend) + ")"
	}
	return "(" + strconv.Itoa(*trend) + ")"
}

// rateTrend formats a percentage difference as "(+x.xx%)" or "(-x.xx%)".
func rateTrend(trend float64) string {
	switch {
	case trend == 0:
		return ""
	case trend > 0:
		return fmt.Sprintf("(+%.2f%%)", trend)
	}
	return fmt.Sprintf("(%.2f%%)", trend)
}
