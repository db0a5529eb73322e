package services

// Services defined in this package:
// - AuthService: registration, login and access token to student resolution
// - AcademicService: semester progression on stored student records
// - ChatService: advisor chat backed by a text generator
