package report

// Trends holds the differences of selected report fields between two
// consecutive windows. A rate trend is nil when either rate is nil.
type Trends struct {
	NumberOfE2EOrSubsystemPeriodicJobs        int      `json:"number_of_e2e_or_subsystem_periodic_jobs"`
	SuccessRateForE2EOrSubsystemPeriodicJobs  *float64 `json:"success_rate_for_e2e_or_subsystem_periodic_jobs"`
	NumberOfE2EOrSubsystemPresubmitJobs       int      `json:"number_of_e2e_or_subsystem_presubmit_jobs"`
	SuccessRateForE2EOrSubsystemPresubmitJobs *float64 `json:"success_rate_for_e2e_or_subsystem_presubmit_jobs"`
	NumberOfRehearsalJobs                     int      `json:"number_of_rehearsal_jobs"`
	NumberOfPostsubmitJobs                    int      `json:"number_of_postsubmit_jobs"`
	SuccessRateForPostsubmitJobs              *float64 `json:"success_rate_for_postsubmit_jobs"`
	TotalNumberOfMachineLeased                int      `json:"total_number_of_machine_leased"`
	NumberOfUnsuccessfulMachineLeases         int      `json:"number_of_unsuccessful_machine_leases"`
}

// DetectTrends returns current minus last.
func DetectTrends(current, last *Report) Trends {
	return Trends{
		NumberOfE2EOrSubsystemPeriodicJobs:        current.NumberOfE2EOrSubsystemPeriodicJobs - last.NumberOfE2EOrSubsystemPeriodicJobs,
		SuccessRateForE2EOrSubsystemPeriodicJobs:  diffRate(current.SuccessRateForE2EOrSubsystemPeriodicJobs, last.SuccessRateForE2EOrSubsystemPeriodicJobs),
		NumberOfE2EOrSubsystemPresubmitJobs:       current.NumberOfE2EOrSubsystemPresubmitJobs - last.NumberOfE2EOrSubsystemPresubmitJobs,
		SuccessRateForE2EOrSubsystemPresubmitJobs: diffRate(current.SuccessRateForE2EOrSubsystemPresubmitJobs, last.SuccessRateForE2EOrSubsystemPresubmitJobs),
		NumberOfRehearsalJobs:                     current.NumberOfRehearsalJobs - last.NumberOfRehearsalJobs,
		NumberOfPostsubmitJobs:                    current.NumberOfPostsubmitJobs - last.NumberOfPostsubmitJobs,
		SuccessRateForPostsubmitJobs:              diffRate(current.SuccessRateForPostsubmitJobs, last.SuccessRateForPostsubmitJobs),
		TotalNumberOfMachineLeased:                current.TotalNumberOfMachineLeased - last.TotalNumberOfMachineLeased,
		NumberOfUnsuccessfulMachineLeases:         current.NumberOfUnsuccessfulMachineLeases - last.NumberOfUnsuccessfulMachineLeases,
	}
}

func diffRate(current, last *float64) *float64 {
	if current == nil || last == nil {
		return nil
	}
	d := *current - *last
	return &d
}
