// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package halo

import "math"

// VoltageToCode quantizes a voltage in µV to a 16-bit ADC code. Values
// outside the representable range are clamped.
func VoltageToCode(microvolts float64) uint16 {
	code := math.RoundToEven(microvolts/ADCMicrovoltsPerLSB) + ADCZeroCode
	if math.IsNaN(code) || code < 0 {
		return 0
	}
	if code > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(code)
}

// CodeToVoltage converts a 16-bit ADC code back to µV.
func CodeToVoltage(code uint16) float64 {
	return (float64(code) - ADCZeroCode) * ADCMicrovoltsPerLSB
}
